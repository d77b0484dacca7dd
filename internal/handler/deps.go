package handler

import (
	"mafiagame/internal/app/game"
	"mafiagame/internal/app/store"
	"mafiagame/internal/configs"
)

type AppDeps struct {
	Hub    *game.Hub
	Config *configs.AppConfig
	Store  store.Store
}
