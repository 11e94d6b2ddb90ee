package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fotofeed/apiserver/internal/auth"
	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/storage"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobBackend() *memBlobBackend {
	return &memBlobBackend{objects: make(map[string][]byte)}
}

func (b *memBlobBackend) EnsureBucket(ctx context.Context) error { return nil }

func (b *memBlobBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBlobBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobBackend) Bucket() string { return "test" }

func (b *memBlobBackend) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type memPostRepo struct {
	mu     sync.Mutex
	nextID int
	posts  map[int]types.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{nextID: 1, posts: make(map[int]types.Post)}
}

func (r *memPostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = r.nextID
	r.nextID++
	if post.LikedBy == nil {
		post.LikedBy = []int64{}
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Get(ctx context.Context, id int) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *memPostRepo) List(ctx context.Context) ([]types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Post
	for _, p := range r.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPostRepo) Exists(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.posts[id]
	return ok, nil
}

func (r *memPostRepo) ToggleLike(ctx context.Context, postID, userID int) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	uid := int64(userID)
	for i, id := range post.LikedBy {
		if id == uid {
			post.LikedBy = append(post.LikedBy[:i], post.LikedBy[i+1:]...)
			r.posts[postID] = post
			return post, nil
		}
	}
	post.LikedBy = append(post.LikedBy, uid)
	r.posts[postID] = post
	return post, nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	nextID   int
	comments map[int]types.Comment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{nextID: 1, comments: make(map[int]types.Comment)}
}

func (r *memCommentRepo) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID
	r.nextID++
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	r.comments[comment.ID] = comment
	return comment, nil
}

func (r *memCommentRepo) ListByPost(ctx context.Context, postID int) ([]types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memCommentRepo) UpdateText(ctx context.Context, id, authorID int, text string) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok || c.AuthorID != authorID {
		return types.Comment{}, store.ErrNotFound
	}
	c.Text = text
	c.UpdatedAt = time.Now()
	r.comments[id] = c
	return c, nil
}

func (r *memCommentRepo) Delete(ctx context.Context, id, authorID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok || c.AuthorID != authorID {
		return store.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

type feedTestEnv struct {
	srv      *httptest.Server
	posts    *memPostRepo
	comments *memCommentRepo
	blobs    *memBlobBackend
}

func newFeedTestServer(t *testing.T) feedTestEnv {
	t.Helper()
	postRepo := newMemPostRepo()
	commentRepo := newMemCommentRepo()
	blobs := newMemBlobBackend()
	blobStore := storage.NewStorage(blobs)

	postService := services.NewPostService(postRepo)
	commentService := services.NewCommentService(commentRepo, postRepo)
	authMiddleware := RequireAuth(testJWTSecret)

	router := chi.NewRouter()
	router.Route("/posts", func(r chi.Router) {
		PostRouter(r, postService, commentService, blobStore, authMiddleware)
	})
	router.Route("/comments", func(r chi.Router) {
		CommentRouter(r, commentService, authMiddleware)
	})
	router.Route("/uploads", func(r chi.Router) {
		UploadRouter(r, blobStore)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return feedTestEnv{srv: srv, posts: postRepo, comments: commentRepo, blobs: blobs}
}

func issueToken(t *testing.T, userID int) string {
	t.Helper()
	token, err := auth.Issue(userID, "user", []byte(testJWTSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func doAuthed(t *testing.T, method, url, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func buildPostForm(t *testing.T, caption string, images ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField(formFieldCaption, caption))
	for _, name := range images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formFieldImages, name))
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestCreatePost(t *testing.T) {
	env := newFeedTestServer(t)
	token := issueToken(t, 1)

	body, contentType := buildPostForm(t, "sunset", "a.png", "b.png")
	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/posts/create", token, body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody[PostResponse](t, resp)
	assert.Equal(t, 1, created.Post.AuthorID)
	assert.Equal(t, "sunset", created.Post.Caption)
	require.Len(t, created.Post.Images, 2)
	for _, image := range created.Post.Images {
		assert.Contains(t, image, uploadPathPrefix)
	}
	assert.Equal(t, 2, env.blobs.len())

	// The stored blob is retrievable through the uploads route.
	key := created.Post.Images[0][len(uploadPathPrefix):]
	getResp, err := http.Get(env.srv.URL + "/uploads/" + key)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	data, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestCreatePostUnauthorized(t *testing.T) {
	env := newFeedTestServer(t)

	body, contentType := buildPostForm(t, "nope")
	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/posts/create", "", body, contentType)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCreatePostTooManyImages(t *testing.T) {
	env := newFeedTestServer(t)
	token := issueToken(t, 1)

	body, contentType := buildPostForm(t, "spam", "a.png", "b.png", "c.png", "d.png", "e.png", "f.png")
	resp := doAuthed(t, http.MethodPost, env.srv.URL+"/posts/create", token, body, contentType)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, env.blobs.len())
}

func TestToggleLikeEndpoint(t *testing.T) {
	env := newFeedTestServer(t)
	token := issueToken(t, 5)

	post, err := env.posts.Create(context.Background(), types.Post{AuthorID: 1, Caption: "hi"})
	require.NoError(t, err)

	url := fmt.Sprintf("%s/posts/%d/like", env.srv.URL, post.ID)
	resp := doAuthed(t, http.MethodPut, url, token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	liked := decodeBody[LikeResponse](t, resp)
	assert.Equal(t, 1, liked.Likes)
	assert.Equal(t, []int64{5}, liked.Post.LikedBy)

	resp = doAuthed(t, http.MethodPut, url, token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unliked := decodeBody[LikeResponse](t, resp)
	assert.Zero(t, unliked.Likes)
}

func TestToggleLikeMissingPostEndpoint(t *testing.T) {
	env := newFeedTestServer(t)
	token := issueToken(t, 5)

	resp := doAuthed(t, http.MethodPut, env.srv.URL+"/posts/42/like", token, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doAuthed(t, http.MethodPut, env.srv.URL+"/posts/zero/like", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListPostsAndComments(t *testing.T) {
	env := newFeedTestServer(t)
	ctx := context.Background()

	post, err := env.posts.Create(ctx, types.Post{AuthorID: 1, Caption: "hi"})
	require.NoError(t, err)
	_, err = env.comments.Create(ctx, types.Comment{PostID: post.ID, AuthorID: 2, Text: "nice"})
	require.NoError(t, err)

	resp, err := http.Get(env.srv.URL + "/posts/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decodeBody[PostListResponse](t, resp)
	require.Len(t, feed.Posts, 1)

	resp, err = http.Get(fmt.Sprintf("%s/posts/%d/comments", env.srv.URL, post.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decodeBody[CommentListResponse](t, resp)
	require.Len(t, comments.Comments, 1)
	assert.Equal(t, "nice", comments.Comments[0].Text)
}
