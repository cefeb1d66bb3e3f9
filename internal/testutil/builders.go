package testutil

import (
	"context"

	"github.com/target/caption-pipeline/internal/domain/model"
)

// PostRequestBuilder provides a fluent interface for building CreatePostRequest objects for testing.
type PostRequestBuilder struct {
	req *model.CreatePostRequest
}

// NewPostRequest creates a new PostRequestBuilder for a VIDEO post.
func NewPostRequest() *PostRequestBuilder {
	return &PostRequestBuilder{
		req: &model.CreatePostRequest{
			MediaType: model.MediaTypeVideo,
			MediaURL:  "https://cdn.example.com/clips/beach.mp4",
			Mood:      model.DefaultMood,
		},
	}
}

// WithMediaType sets the media type.
func (b *PostRequestBuilder) WithMediaType(mt model.MediaType) *PostRequestBuilder {
	b.req.MediaType = mt
	return b
}

// WithMediaURL sets the media URL.
func (b *PostRequestBuilder) WithMediaURL(u string) *PostRequestBuilder {
	b.req.MediaURL = u
	return b
}

// WithMood sets the mood.
func (b *PostRequestBuilder) WithMood(mood string) *PostRequestBuilder {
	b.req.Mood = mood
	return b
}

// WithAuthor sets the author id.
func (b *PostRequestBuilder) WithAuthor(authorID string) *PostRequestBuilder {
	b.req.AuthorID = &authorID
	return b
}

// Build returns the constructed CreatePostRequest.
func (b *PostRequestBuilder) Build() *model.CreatePostRequest {
	return b.req
}

// PostCreator is the subset of the post store used by fixtures.
type PostCreator interface {
	Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error)
}

// MustCreatePost persists a post built from req or fails the test.
func MustCreatePost(t TestingTB, repo PostCreator, req *model.CreatePostRequest) *model.Post {
	t.Helper()
	if req == nil {
		req = NewPostRequest().Build()
	}
	post, err := repo.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// CaptionResult builds a worker report for tests.
func CaptionResult(jobID, postID string, success bool, caption, errMsg string) *model.CaptionResult {
	r := &model.CaptionResult{JobID: jobID, PostID: postID, Success: success}
	if caption != "" {
		r.Caption = &caption
	}
	if errMsg != "" {
		r.ErrorMessage = &errMsg
	}
	return r
}
