package main

import (
	"errors"
	"fmt"

	"audio-job-service/internal/auth"
	"audio-job-service/internal/config"
)

type TokenCmd struct {
	User string `arg:"" help:"User id to put in the token."`
}

func (c *TokenCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.EnvFile)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	token, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL).GenerateAccessToken(c.User)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
