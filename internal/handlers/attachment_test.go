package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
)

func setupAttachmentRouter(handler *AttachmentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("participantID", 1)
		c.Next()
	})
	r.POST("/conversations/:id/messages/:message_id/attachment", handler.Upload)
	r.GET("/conversations/:id/messages/:message_id/attachment-url", handler.DownloadURL)
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadAttachesFileToOwnMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	handler := NewAttachmentHandler(convRepo, messageRepo, blobs, nil)
	router := setupAttachmentRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 11).
		Return(models.Message{ID: 11, ConversationID: 3, SenderID: 1, Body: "photo"}, nil).Once()
	blobs.On("Upload", mock.Anything, "conversations/3/11/site.jpg", mock.Anything, mock.Anything, mock.Anything).
		Return("conversations/3/11/site.jpg", nil).Once()

	path := "conversations/3/11/site.jpg"
	name := "site.jpg"
	messageRepo.On("AttachFile", mock.Anything, 11, path, name, mock.Anything, mock.Anything).
		Return(models.Message{ID: 11, ConversationID: 3, SenderID: 1, Body: "photo", AttachmentPath: &path, AttachmentName: &name}, nil).Once()

	body, contentType := multipartBody(t, "file", "site.jpg", "jpegdata")
	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages/11/attachment", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	require.NotNil(t, msg.AttachmentPath)
	assert.Equal(t, path, *msg.AttachmentPath)

	blobs.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestUploadRejectsForeignMessage(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	handler := NewAttachmentHandler(convRepo, messageRepo, blobs, nil)
	router := setupAttachmentRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 11).
		Return(models.Message{ID: 11, ConversationID: 3, SenderID: 2}, nil).Once()

	body, contentType := multipartBody(t, "file", "site.jpg", "jpegdata")
	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages/11/attachment", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	blobs.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDownloadURLSigned(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	handler := NewAttachmentHandler(convRepo, messageRepo, blobs, nil)
	router := setupAttachmentRouter(handler)

	path := "conversations/3/11/site.jpg"
	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 11).
		Return(models.Message{ID: 11, ConversationID: 3, SenderID: 2, AttachmentPath: &path}, nil).Once()
	blobs.On("SignedURL", mock.Anything, path, signedURLTTL).
		Return("https://blobs.local/signed", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/3/messages/11/attachment-url", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "https://blobs.local/signed", resp["url"])

	blobs.AssertExpectations(t)
}

func TestDownloadURLNoAttachment(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	handler := NewAttachmentHandler(convRepo, messageRepo, blobs, nil)
	router := setupAttachmentRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 11).
		Return(models.Message{ID: 11, ConversationID: 3, SenderID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/3/messages/11/attachment-url", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	blobs.AssertNotCalled(t, "SignedURL", mock.Anything, mock.Anything, mock.Anything)
}
