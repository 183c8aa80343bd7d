package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/deepfake-detector/internal/imagecheck"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/shell"
	"github.com/example/deepfake-detector/internal/web"
)

// multipartOverhead is the allowance for form boundaries and part headers on
// top of the image size limit.
const multipartOverhead = 1 << 20

// RegisterRoutes wires the page, the JSON API and the state stream to the
// Gin router.
func RegisterRoutes(router *gin.Engine, sh *shell.Shell, store *imagestore.Store, inspector *imagecheck.Inspector, logger *zap.Logger) error {
	tmpl, err := web.Templates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", web.Static())

	maxBytes := inspector.MaxBytes()

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index", web.NewView(sh.State(), maxBytes))
	})

	router.GET("/panel", func(c *gin.Context) {
		c.HTML(http.StatusOK, "panel", web.NewView(sh.State(), maxBytes))
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, sh.State())
	})

	router.POST("/api/image", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

		file, err := c.FormFile("image")
		if err != nil {
			if isBodyTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		if ct := file.Header.Get("Content-Type"); !acceptableDeclaredType(ct) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		meta, err := inspector.Inspect(data)
		if err != nil {
			logger.Info("rejected upload", zap.String("file_name", file.Filename), zap.Error(err))
			c.JSON(MapHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}

		st, err := sh.Select(imagestore.Upload{
			FileName: filepath.Base(file.Filename),
			Data:     data,
			Meta:     meta,
		})
		if err != nil {
			logger.Error("failed to select image", zap.Error(err))
			c.JSON(MapHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, st)
	})

	router.DELETE("/api/image", func(c *gin.Context) {
		c.JSON(http.StatusOK, sh.Clear())
	})

	router.GET("/images/:id", func(c *gin.Context) {
		data, img, err := store.Get(c.Param("id"))
		if err != nil {
			c.JSON(MapHTTPStatus(err), gin.H{"error": "image not found"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, img.ContentType, data)
	})

	router.GET("/api/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"shell":  sh.Stats(),
			"images": store.Stats(),
		})
	})

	router.GET("/ws", StreamState(sh, logger))

	return nil
}

// acceptableDeclaredType rejects parts the client itself labels as non-image.
// The bytes are sniffed later regardless of what is declared here.
func acceptableDeclaredType(ct string) bool {
	return ct == "" || ct == "application/octet-stream" || strings.HasPrefix(ct, "image/")
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
