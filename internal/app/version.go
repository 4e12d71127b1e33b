package app

// Version is stamped at build time via -ldflags "-X complaint-service/internal/app.Version=..."
var Version = "1.0.0"
