/*
Package config loads runtime configuration for the CoverClarity server.

SOURCES:
  Environment variables for deployment-level settings, command-line flags
  (parsed in cmd/server) for local things like ports and file paths.

REQUIRED:
  COVER_PUBLIC_URL   Base URL the service is reachable at. Document URLs
                     handed to clients are built from it.
  COVER_JWT_SECRET   HMAC secret for session tokens.

  Missing required values are a fatal startup error. Everything else has
  a development default.

OPTIONAL:
  COVER_STORAGE_BACKEND  "disk" (default) or "s3"
  COVER_S3_BUCKET        Bucket for the s3 backend
  COVER_S3_REGION        Region for the s3 backend (default us-east-1)
  COVER_S3_ENDPOINT      Custom endpoint (LocalStack/MinIO); forces path-style
  COVER_ADMIN_EMAIL      Seed account email
  COVER_ADMIN_PASS       Seed account password
  COVER_CORS_ORIGINS     Comma-separated allowed origins
*/
package config

import (
	"log"
	"os"
	"strings"
)

// Env holds configuration read from the environment.
type Env struct {
	PublicURL string
	JWTSecret string

	StorageBackend string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string

	AdminEmail string
	AdminPass  string

	CORSOrigins []string
}

// MustLoad reads the environment and exits the process if a required
// value is missing.
func MustLoad() Env {
	e := Env{
		PublicURL:      strings.TrimRight(os.Getenv("COVER_PUBLIC_URL"), "/"),
		JWTSecret:      os.Getenv("COVER_JWT_SECRET"),
		StorageBackend: getEnv("COVER_STORAGE_BACKEND", "disk"),
		S3Bucket:       os.Getenv("COVER_S3_BUCKET"),
		S3Region:       getEnv("COVER_S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("COVER_S3_ENDPOINT"),
		AdminEmail:     os.Getenv("COVER_ADMIN_EMAIL"),
		AdminPass:      os.Getenv("COVER_ADMIN_PASS"),
		CORSOrigins:    splitList(getEnv("COVER_CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}

	if e.PublicURL == "" {
		log.Fatal("COVER_PUBLIC_URL is required")
	}
	if e.JWTSecret == "" {
		log.Fatal("COVER_JWT_SECRET is required")
	}
	if e.StorageBackend == "s3" && e.S3Bucket == "" {
		log.Fatal("COVER_S3_BUCKET is required when COVER_STORAGE_BACKEND=s3")
	}

	return e
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
