package storage

import (
	"errors"
	"strings"
	"testing"
	"twipost/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(NotFoundError, ClientError))
	assert.True(t, errors.Is(CollisionError, ClientError))
	assert.True(t, errors.Is(ValidationError, ClientError))
	assert.False(t, errors.Is(Forbidden, ClientError))
	assert.False(t, errors.Is(InternalError, ClientError))
}

func TestCheckText(t *testing.T) {
	assert.NoError(t, CheckText("hello"))

	err := CheckText(strings.Repeat("a", 241))
	assert.ErrorIs(t, err, ValidationError)
	assert.ErrorIs(t, err, models.ErrTextTooLong)

	assert.ErrorIs(t, CheckText(""), models.ErrEmptyText)
}

func TestParsePage(t *testing.T) {
	offset, err := ParsePage(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	p := "20"
	offset, err = ParsePage(&p)
	require.NoError(t, err)
	assert.Equal(t, 20, offset)

	for _, bad := range []string{"abc", "-1", ""} {
		bad := bad
		_, err = ParsePage(&bad)
		assert.ErrorIs(t, err, ClientError, bad)
	}
}

func TestPaginate(t *testing.T) {
	posts := make([]*models.Post, 4)
	for i := range posts {
		posts[i] = &models.Post{}
	}

	page, next := Paginate(posts, 0, 3)
	assert.Len(t, page, 3)
	require.NotNil(t, next)
	assert.Equal(t, "3", *next)

	page, next = Paginate(posts[:3], 3, 3)
	assert.Len(t, page, 3)
	assert.Nil(t, next)

	page, next = Paginate(posts, 0, 0)
	assert.Len(t, page, 4)
	assert.Nil(t, next)
}
