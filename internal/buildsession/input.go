package buildsession

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"apkdash/internal/api"
)

var (
	ErrEmptyURL   = errors.New("buildsession: website URL is empty")
	ErrInvalidURL = errors.New("buildsession: website URL is not valid")
	ErrEmptyZip   = errors.New("buildsession: no project archive selected")
	ErrNotZip     = errors.New("buildsession: selected file is not a .zip archive")
)

// Input is one pipeline's submission payload.
type Input interface {
	Validate() error
}

// URLInput submits a website URL for packaging.
type URLInput struct {
	URL     string
	AppName string
	Icon    []byte
}

func (in *URLInput) Validate() error {
	raw := strings.TrimSpace(in.URL)
	if raw == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}

// Params returns the API call parameters for this input.
func (in *URLInput) Params() *api.URLBuildParams {
	return &api.URLBuildParams{
		URL:     strings.TrimSpace(in.URL),
		AppName: strings.TrimSpace(in.AppName),
		Icon:    in.Icon,
	}
}

// ZipInput submits a project archive for packaging.
type ZipInput struct {
	Filename    string
	Content     []byte
	ProjectType string
	BuildType   string
}

func (in *ZipInput) Validate() error {
	if len(in.Content) == 0 {
		return ErrEmptyZip
	}
	if !strings.EqualFold(filepath.Ext(in.Filename), ".zip") {
		return ErrNotZip
	}
	return nil
}

// Params returns the API call parameters for this input. Project and build
// type default to the form's initial selection.
func (in *ZipInput) Params() *api.ZipBuildParams {
	projectType := in.ProjectType
	if projectType == "" {
		projectType = "flutter"
	}
	buildType := in.BuildType
	if buildType == "" {
		buildType = "release"
	}
	return &api.ZipBuildParams{
		Filename:    in.Filename,
		Content:     in.Content,
		ProjectType: projectType,
		BuildType:   buildType,
	}
}
