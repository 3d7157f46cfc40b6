package config

// Version é sobrescrito em build via -ldflags "-X .../internal/config.Version=...".
var Version = "dev"
