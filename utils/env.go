package utils

import "os"

var (
	HTTP_PORT           = GetEnvOrDefault("HTTP_PORT", "8080")
	DEFAULT_PARALLELISM = GetEnvOrDefaultInt("DEFAULT_PARALLELISM", 4)

	// PLAN_STORE is one of memory, crdb, redis
	PLAN_STORE = GetEnvOrDefault("PLAN_STORE", "memory")

	CRDB_DSN       = os.Getenv("CRDB_DSN")
	CRDB_MAX_CONNS = GetEnvOrDefaultInt("CRDB_MAX_CONNS", 10)
	AUTO_MIGRATE   = os.Getenv("AUTO_MIGRATE") == "1"

	REDIS_ADDR     = GetEnvOrDefault("REDIS_ADDR", "localhost:6379")
	REDIS_PASSWORD = os.Getenv("REDIS_PASSWORD")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")
)
