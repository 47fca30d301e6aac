package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"twipost/auth"
	"twipost/handlers"
	"twipost/storage"
	"twipost/storage/models"
	"twipost/utils"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	openapi3_routers "github.com/getkin/kin-openapi/routers"
	openapi3_legacy "github.com/getkin/kin-openapi/routers/legacy"
	_ "github.com/motemen/go-loghttp/global"
	"github.com/stretchr/testify/suite"
)

//go:embed api.yaml
var apiSpec []byte

var ctx = context.Background()

const apiPassword = "api-test-password"

func TestAPI(t *testing.T) {
	suite.Run(t, &APISuite{})
}

type APISuite struct {
	suite.Suite

	client        http.Client
	apiSpecRouter openapi3_routers.Router
	server        *httptest.Server
	store         storage.Storage
}

func testConfig() *utils.Config {
	return &utils.Config{
		Port:          "0",
		StorageMode:   utils.InMemory,
		SecretKey:     "api-test-secret",
		SessionTTL:    time.Hour,
		AuthRateLimit: 6000,
		AuthBurst:     1000,
		PageSize:      10,
		LogLevel:      "debug",
	}
}

func (s *APISuite) SetupSuite() {
	cfg := testConfig()
	store, err := OpenStorage(ctx, cfg)
	s.Require().NoError(err)
	s.store = store
	s.server = httptest.NewServer(NewRouter(store, cfg))

	for _, username := range []string{"alice", "bob"} {
		_, err := auth.CreateUser(ctx, s.store, username, username+"@example.com", apiPassword)
		s.Require().NoError(err)
	}

	spec, err := openapi3.NewLoader().LoadFromData(apiSpec)
	s.Require().NoError(err)
	s.Require().NoError(spec.Validate(ctx))
	router, err := openapi3_legacy.NewRouter(spec)
	s.Require().NoError(err)
	s.apiSpecRouter = router
	s.client.Transport = s.specValidating(http.DefaultTransport)
}

func (s *APISuite) TearDownSuite() {
	s.server.Close()
	s.Require().NoError(s.store.Close(ctx))
}

func (s *APISuite) specValidating(transport http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		log.Println("Send HTTP request:")
		reqBody := s.printReq(req)

		// validate request
		route, params, err := s.apiSpecRouter.FindRoute(req)
		s.Require().NoError(err)
		reqDescriptor := &openapi3filter.RequestValidationInput{
			Request:     req,
			PathParams:  params,
			QueryParams: req.URL.Query(),
			Route:       route,
		}
		s.Require().NoError(openapi3filter.ValidateRequest(ctx, reqDescriptor))

		// do request
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
		resp, err := transport.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		log.Println("Got HTTP response:")
		respBody := s.printResp(resp)

		// Validate response against api.yaml
		s.Require().NoError(openapi3filter.ValidateResponse(ctx, &openapi3filter.ResponseValidationInput{
			RequestValidationInput: reqDescriptor,
			Status:                 resp.StatusCode,
			Header:                 resp.Header,
			Body:                   io.NopCloser(bytes.NewReader(respBody)),
		}))

		return resp, nil
	})
}

func (s *APISuite) printReq(req *http.Request) []byte {
	body := s.readAll(req.Body)

	req.Body = io.NopCloser(bytes.NewReader(body))
	s.Require().NoError(req.Write(os.Stdout))
	fmt.Println()

	req.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

func (s *APISuite) printResp(resp *http.Response) []byte {
	body := s.readAll(resp.Body)

	resp.Body = io.NopCloser(bytes.NewReader(body))
	s.Require().NoError(resp.Write(os.Stdout))
	fmt.Println()

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

func (s *APISuite) readAll(in io.Reader) []byte {
	if in == nil {
		return nil
	}
	data, err := io.ReadAll(in)
	s.Require().NoError(err)
	return data
}

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (fn RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func (s *APISuite) do(method, path, token, body string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *APISuite) decode(resp *http.Response, v interface{}) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *APISuite) token(username string) string {
	resp := s.do("POST", "/api/v1/auth/token", "",
		fmt.Sprintf(`{"username": %q, "password": %q}`, username, apiPassword))
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body handlers.TokenResponse
	s.decode(resp, &body)
	return body.Token
}

func (s *APISuite) createPost(token, text string) *models.Post {
	resp := s.do("POST", "/api/v1/posts", token, fmt.Sprintf(`{"text": %q}`, text))
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var post models.Post
	s.decode(resp, &post)
	return &post
}

// --------------- // TESTS // --------------- //

func (s *APISuite) TestHealthCheck() {
	resp := s.do("GET", "/maintenance/ping", "", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestTokenWrongPassword() {
	resp := s.do("POST", "/api/v1/auth/token", "", `{"username": "alice", "password": "wrong"}`)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestCreatePost() {
	post := s.createPost(s.token("alice"), "1234")

	s.Equal("1234", post.Text)
	s.Equal("alice", post.OwnerUsername)
	s.Equal(post.CreatedAt, post.UpdatedAt)
}

func (s *APISuite) TestCreatePostWithoutToken() {
	resp := s.do("POST", "/api/v1/posts", "", `{"text": "anonymous"}`)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestCreatePostEmptyText() {
	resp := s.do("POST", "/api/v1/posts", s.token("alice"), `{"text": "   "}`)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestPostLifecycle() {
	token := s.token("alice")
	post := s.createPost(token, "first version")

	resp := s.do("GET", "/api/v1/posts/"+post.Id, "", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var fetched models.Post
	s.decode(resp, &fetched)
	s.Equal(post.Text, fetched.Text)

	resp = s.do("PATCH", "/api/v1/posts/"+post.Id, token, `{"text": "second version"}`)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var patched models.Post
	s.decode(resp, &patched)
	s.Equal("second version", patched.Text)
	s.Equal(post.CreatedAt, patched.CreatedAt)
	s.True(patched.UpdatedAt.After(post.UpdatedAt))

	resp = s.do("DELETE", "/api/v1/posts/"+post.Id, token, "")
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp = s.do("GET", "/api/v1/posts/"+post.Id, "", "")
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *APISuite) TestOtherUsersPost() {
	post := s.createPost(s.token("alice"), "alice only")
	bob := s.token("bob")

	resp := s.do("PATCH", "/api/v1/posts/"+post.Id, bob, `{"text": "bob was here"}`)
	s.Require().Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.do("DELETE", "/api/v1/posts/"+post.Id, bob, "")
	s.Require().Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.do("GET", "/api/v1/posts/"+post.Id, "", "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestUserPostsPages() {
	_, err := auth.CreateUser(ctx, s.store, "carol", "", apiPassword)
	s.Require().NoError(err)
	token := s.token("carol")
	for i := 0; i < 5; i++ {
		s.createPost(token, fmt.Sprintf("carol #%d", i))
	}

	var texts []string
	path := "/api/v1/users/carol/posts?size=2"
	for pages := 0; ; pages++ {
		s.Require().Less(pages, 3)
		resp := s.do("GET", path, "", "")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var page handlers.PostsResponse
		s.decode(resp, &page)
		for _, post := range page.Posts {
			texts = append(texts, post.Text)
		}
		if page.NextPage == nil {
			break
		}
		path = "/api/v1/users/carol/posts?size=2&page=" + *page.NextPage
	}
	s.Equal([]string{"carol #4", "carol #3", "carol #2", "carol #1", "carol #0"}, texts)
}

func (s *APISuite) TestUnknownUserPosts() {
	resp := s.do("GET", "/api/v1/users/nobody/posts", "", "")
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *APISuite) TestInvalidPageToken() {
	resp := s.do("GET", "/api/v1/posts?page=not-a-page", "", "")
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestMetrics() {
	s.do("GET", "/maintenance/ping", "", "")

	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	body := s.readAll(resp.Body)
	s.Contains(string(body), `twipost_http_requests_total{method="GET",route="health",status="200"}`)
}

func TestCreateServer(t *testing.T) {
	cfg := testConfig()
	srv, err := CreateServer(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Addr != "0.0.0.0:0" {
		t.Fatalf("unexpected address %s", srv.Addr)
	}

	cfg.StorageMode = "unknown"
	if _, err := CreateServer(ctx, cfg); err == nil {
		t.Fatal("expected an error for an unknown storage mode")
	}
}
