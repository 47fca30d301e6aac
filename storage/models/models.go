package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxTextLength is the maximum number of characters in a post.
	MaxTextLength = 240
	// DisplayLength is how much of the text String shows.
	DisplayLength = 10
	// TimePrecision is the resolution every backend stores timestamps with.
	TimePrecision = time.Millisecond
)

var (
	ErrEmptyText   = errors.New("post text is empty")
	ErrTextTooLong = fmt.Errorf("post text is longer than %d characters", MaxTextLength)
)

type Post struct {
	Id            string    `json:"id"`
	OwnerId       string    `json:"ownerId"`
	OwnerUsername string    `json:"ownerUsername"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (p *Post) ToJson() []byte {
	j, err := json.Marshal(p)
	if err != nil {
		log.Fatalf("Failed to dump post to json: %s", err.Error())
	}
	return j
}

// String renders the post as "<username> - <first DisplayLength characters>".
func (p *Post) String() string {
	return p.OwnerUsername + " - " + truncate(p.Text, DisplayLength)
}

// Edited reports whether the post was modified after creation.
func (p *Post) Edited() bool {
	return p.UpdatedAt.After(p.CreatedAt)
}

// Validate checks the post text against the write-time rules.
func (p *Post) Validate() error {
	return ValidateText(p.Text)
}

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	DateJoined   time.Time `json:"dateJoined"`
}

func (u *User) String() string {
	return u.Username
}

func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// Now returns the current UTC time at storage precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(TimePrecision)
}

// NextModification returns the updated_at value for a post last modified at
// prev. The result is always strictly after prev, even if the clock has not
// advanced by a full TimePrecision step.
func NextModification(prev time.Time) time.Time {
	now := Now()
	if now.After(prev) {
		return now
	}
	return prev.Add(TimePrecision)
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
