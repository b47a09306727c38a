package handler

import (
	"huddle/internal/app/chat"
	"huddle/internal/configs"
)

// AppDeps bundles the dependencies the HTTP handlers need.
type AppDeps struct {
	Hub    *chat.Hub
	Config *configs.AppConfig
}
