package httpapi

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"captiond/internal/captioner"
	"captiond/internal/imaging"
	"captiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *captioner.Captioner satisfies it.
type Service interface {
	ModelID() string
	Caption(ctx context.Context, img image.Image) (captioner.Result, error)
	Ready() bool
	Status() types.StatusResponse
}

// NewMux builds the router. svc is the load-once model handle; token is the
// shared secret every /analyze-image caller must present.
func NewMux(svc Service, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverJSON)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.With(requireServiceToken(token)).Post("/analyze-image", analyzeImage(svc))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// analyzeImage godoc
//
//	@Summary		Caption an image
//	@Description	Uploads one image and returns the caption generated by the loaded model.
//	@Tags			caption
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			Authorization	header		string	true	"Bearer <service token>"
//	@Param			image			formData	file	true	"Image to caption (JPEG, PNG, GIF, WebP, BMP, TIFF)"
//	@Success		200				{object}	types.CaptionResponse
//	@Failure		400				{object}	types.ErrorResponse
//	@Failure		401				{object}	types.ErrorResponse
//	@Failure		403				{object}	types.ErrorResponse
//	@Failure		413				{object}	types.ErrorResponse
//	@Failure		422				{object}	types.ErrorResponse
//	@Failure		500				{object}	types.ErrorResponse
//	@Router			/analyze-image [post]
func analyzeImage(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("path", r.URL.Path).Str("model", svc.ModelID())
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("analyze start")
			} else {
				log.Printf("analyze start path=%s model=%s", r.URL.Path, svc.ModelID())
			}
		}

		img, err := readUpload(w, r)
		if err != nil {
			code := writeError(w, err)
			logAnalyzeEnd(r, lvl, code, start, "", err)
			return
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if inferTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(inferTimeout)*time.Second)
			defer tcancel()
		}
		res, err := svc.Caption(ctx, img)
		if err != nil {
			// Client went away; nobody is left to read a response.
			if r.Context().Err() != nil {
				return
			}
			if serverBaseCtx.Err() != nil {
				err = statusError{code: http.StatusServiceUnavailable, msg: msgShuttingDown}
			}
			code := writeError(w, err)
			logAnalyzeEnd(r, lvl, code, start, "", err)
			return
		}
		writeJSON(w, http.StatusOK, types.CaptionResponse{
			Model:     svc.ModelID(),
			Caption:   res.Caption,
			LatencyMS: res.LatencyMS(),
		})
		logAnalyzeEnd(r, lvl, http.StatusOK, start, res.Caption, nil)
	}
}

// readUpload extracts and decodes the "image" form file.
func readUpload(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return nil, statusError{code: http.StatusRequestEntityTooLarge, msg: "upload exceeds maximum size"}
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return nil, statusError{code: http.StatusUnprocessableEntity, msg: "image file is required"}
		default:
			return nil, statusError{code: http.StatusBadRequest, msg: "invalid multipart body: " + err.Error()}
		}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, statusError{code: http.StatusUnprocessableEntity, msg: "image file is required"}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, statusError{code: http.StatusBadRequest, msg: "read upload: " + err.Error()}
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}
