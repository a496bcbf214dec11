package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BlobGridFS = "gridfs"
	BlobGCS    = "gcs"

	MediaCloudinary = "cloudinary"
	MediaGCS        = "gcs"
	MediaNone       = "none"
)

type AppConfig struct {
	Port       string
	BackendURL string

	BlobBackend        string
	GridFSBucket       string
	GCSBucket          string
	GCSCredentialsFile string

	MediaBackend        string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	MediaFolder         string
	MediaQuality        string

	ImageUploadTimeout    time.Duration
	ImageMaxBytes         int64
	DocumentMaxBytes      int64
	DocumentUploadTimeout time.Duration
	UploadConcurrency     int
	MultipartMemory       int64
	CloneCacheTTL         time.Duration
	PDFInspectMaxBytes    int64

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// LoadApp reads the service settings from the environment. Call
// godotenv.Load first when a .env file should be honoured.
func LoadApp() (*AppConfig, error) {
	var errs []string
	p := envParser{errs: &errs}

	cfg := &AppConfig{
		Port:       envString("PORT", "8080"),
		BackendURL: strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),

		BlobBackend:        strings.ToLower(envString("BLOB_BACKEND", BlobGridFS)),
		GridFSBucket:       envString("GRIDFS_BUCKET", "pdfs"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),

		MediaBackend:        strings.ToLower(envString("MEDIA_BACKEND", MediaCloudinary)),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		MediaFolder:         envString("MEDIA_FOLDER", "clone-images"),
		MediaQuality:        envString("MEDIA_QUALITY", "auto"),

		ImageUploadTimeout:    p.duration("IMAGE_UPLOAD_TIMEOUT", 15*time.Second),
		ImageMaxBytes:         p.int64("IMAGE_MAX_BYTES", 5<<20),
		DocumentMaxBytes:      p.int64("DOCUMENT_MAX_BYTES", 100<<20),
		DocumentUploadTimeout: p.duration("DOCUMENT_UPLOAD_TIMEOUT", 10*time.Minute),
		UploadConcurrency:     int(p.int64("UPLOAD_CONCURRENCY", 4)),
		MultipartMemory:       p.int64("MULTIPART_MEMORY", 8<<20),
		CloneCacheTTL:         p.duration("CLONE_CACHE_TTL", 5*time.Minute),
		PDFInspectMaxBytes:    p.int64("PDF_INSPECT_MAX_BYTES", 20<<20),

		JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience: os.Getenv("SUPABASE_JWT_AUDIENCE"),
	}

	switch cfg.BlobBackend {
	case BlobGridFS:
	case BlobGCS:
		if cfg.GCSBucket == "" {
			errs = append(errs, "GCS_BUCKET is required when BLOB_BACKEND=gcs")
		}
	default:
		errs = append(errs, "BLOB_BACKEND must be gridfs or gcs")
	}

	switch cfg.MediaBackend {
	case MediaNone:
	case MediaCloudinary:
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			errs = append(errs, "CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required when MEDIA_BACKEND=cloudinary")
		}
	case MediaGCS:
		if cfg.GCSBucket == "" {
			errs = append(errs, "GCS_BUCKET is required when MEDIA_BACKEND=gcs")
		}
	default:
		errs = append(errs, "MEDIA_BACKEND must be cloudinary, gcs or none")
	}

	if cfg.UploadConcurrency < 1 {
		errs = append(errs, "UPLOAD_CONCURRENCY must be at least 1")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type envParser struct {
	errs *[]string
}

func (p envParser) int64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		*p.errs = append(*p.errs, key+" must be a non-negative integer")
		return def
	}
	return n
}

func (p envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*p.errs = append(*p.errs, key+" must be a positive duration like 15s")
		return def
	}
	return d
}
