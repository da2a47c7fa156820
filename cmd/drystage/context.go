package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/ib-77/drystages/internal/config"
	"github.com/ib-77/drystages/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Log.Level = *c.logLevelFlag
		}
		if c.logFormatFlag != nil && *c.logFormatFlag != "" {
			cfg.Log.Format = *c.logFormatFlag
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, err
	}
	return logging.Component(logger, "drystage"), nil
}
