package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/gin-gonic/gin"
)

// MaxUploadBytes caps request bodies of create and update calls. Content is
// buffered in memory.
const MaxUploadBytes = 32 << 20

type createFileRequest struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Content  string `json:"content"`
}

type updateFileRequest struct {
	Name     *string `json:"name"`
	MimeType *string `json:"mimeType"`
	Content  *string `json:"content"`
}

// upload is the file part of a multipart body.
type upload struct {
	name     string
	mimeType string
	content  []byte
}

func isMultipart(c *gin.Context) bool {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readUpload reads the "file" part. Optional "name" and "mimeType" form
// fields override the values of the part itself.
func readUpload(c *gin.Context) (*upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: malformed multipart body: %v", common.ErrValidation, err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", common.ErrValidation, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", common.ErrValidation, err)
	}

	u := &upload{name: fh.Filename, mimeType: fh.Header.Get("Content-Type"), content: content}
	if name := c.PostForm("name"); name != "" {
		u.name = name
	}
	if mimeType := c.PostForm("mimeType"); mimeType != "" {
		u.mimeType = mimeType
	}
	return u, nil
}

// defaultTextMimeType applies to JSON uploads, whose content is always text.
const defaultTextMimeType = "text/plain"

func (s *Server) handleCreateFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	var file models.NewFile
	if isMultipart(c) {
		u, err := readUpload(c)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		if u == nil {
			s.abortWithError(c, fmt.Errorf("%w: missing file part", common.ErrValidation))
			return
		}
		file = models.NewFile{Name: u.name, MimeType: u.mimeType, Content: u.content}
	} else {
		var req createFileRequest
		if err := bindJSON(c, &req); err != nil {
			s.abortWithError(c, err)
			return
		}
		if req.MimeType == "" {
			req.MimeType = defaultTextMimeType
		}
		file = models.NewFile{Name: req.Name, MimeType: req.MimeType, Content: []byte(req.Content)}
	}

	created, err := s.storage.CreateFile(c.Request.Context(), currentUserID(c), c.Param("accountId"), file)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListFiles(c *gin.Context) {
	opts := models.ListOptions{
		Query:     c.Query("q"),
		PageToken: c.Query("pageToken"),
	}
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.abortWithError(c, fmt.Errorf("%w: invalid pageSize %q", common.ErrValidation, raw))
			return
		}
		opts.PageSize = n
	}

	list, err := s.storage.ListFiles(c.Request.Context(), currentUserID(c), c.Param("accountId"), opts)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetFile(c *gin.Context) {
	ctx := c.Request.Context()
	userID, accountID, fileID := currentUserID(c), c.Param("accountId"), c.Param("fileId")

	if c.Query("alt") != "media" {
		file, err := s.storage.GetFile(ctx, userID, accountID, fileID)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, file)
		return
	}

	dl, err := s.storage.Download(ctx, userID, accountID, fileID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(dl.Name))
	c.Data(http.StatusOK, dl.MimeType, dl.Content)
}

// contentDisposition quotes name for an attachment header. Quotes,
// backslashes and control characters are dropped.
func contentDisposition(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"`, clean)
}

func (s *Server) handleUpdateFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	var update models.FileUpdate
	if isMultipart(c) {
		u, err := readUpload(c)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		if name := c.PostForm("name"); name != "" {
			update.Name = &name
		}
		if mimeType := c.PostForm("mimeType"); mimeType != "" {
			update.MimeType = &mimeType
		}
		if u != nil {
			update.Content = u.content
			if update.MimeType == nil && u.mimeType != "" {
				update.MimeType = &u.mimeType
			}
		}
	} else {
		var req updateFileRequest
		if err := bindJSON(c, &req); err != nil {
			s.abortWithError(c, err)
			return
		}
		update.Name = req.Name
		update.MimeType = req.MimeType
		if req.Content != nil {
			update.Content = []byte(*req.Content)
		}
	}

	file, err := s.storage.UpdateFile(c.Request.Context(), currentUserID(c), c.Param("accountId"), c.Param("fileId"), update)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	if err := s.storage.DeleteFile(c.Request.Context(), currentUserID(c), c.Param("accountId"), c.Param("fileId")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleQuota(c *gin.Context) {
	q, err := s.storage.GetQuota(c.Request.Context(), currentUserID(c), c.Param("accountId"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
