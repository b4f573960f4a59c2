package main

import (
	"github.com/teslashibe/go-attend/internal/config"
	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/auth"
	"github.com/teslashibe/go-attend/pkg/camera"
	"github.com/teslashibe/go-attend/pkg/camera/webcam"
	"github.com/teslashibe/go-attend/pkg/detection"
	"github.com/teslashibe/go-attend/pkg/detection/yunet"
	"github.com/teslashibe/go-attend/pkg/session"
	"github.com/teslashibe/go-attend/pkg/verify"
)

// pipeline is the wired capture stack shared by serve and checkin.
type pipeline struct {
	store     *auth.FileStore
	adapter   *detection.Adapter
	submitter *verify.Submitter
	ctrl      *session.Controller
}

func newPipeline(c config.Config) *pipeline {
	store := auth.NewFileStore(c.TokenFile)

	detCfg := detection.DefaultConfig()
	detCfg.ModelPath = c.ModelPath
	adapter := detection.NewAdapter(yunet.Loader(detCfg), log.L())

	camCfg := camera.DefaultConfig()
	camCfg.Device = c.CameraDevice

	verifyCfg := verify.DefaultConfig(c.APIURL)
	verifyCfg.Timeout = c.SubmitTimeout
	submitter := verify.NewSubmitter(verifyCfg, store)

	sessCfg := session.DefaultConfig()
	sessCfg.Admission = admission.Config{
		Threshold: c.ConfirmFrames,
		Interval:  c.PollInterval,
	}
	ctrl := session.New(sessCfg, webcam.Opener(camCfg), adapter, submitter)

	return &pipeline{
		store:     store,
		adapter:   adapter,
		submitter: submitter,
		ctrl:      ctrl,
	}
}

func (p *pipeline) Close() {
	if err := p.ctrl.Close(); err != nil {
		log.Warn("session close failed", "error", err)
	}
	if err := p.adapter.Close(); err != nil {
		log.Warn("detector close failed", "error", err)
	}
}
