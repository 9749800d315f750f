package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"
)

type decodeFunc func(r io.Reader, v any) error

// sectionFormats is the lookup order for one section file.
var sectionFormats = []struct {
	ext    string
	decode decodeFunc
}{
	{".yaml", func(r io.Reader, v any) error { return yaml.NewDecoder(r).Decode(v) }},
	{".json", func(r io.Reader, v any) error { return json.NewDecoder(r).Decode(v) }},
}

// LoadAppConfig reads <dir>/<section>.yaml (or .json) for every section and
// layers what is set onto DefaultAppConfig. Missing files keep the defaults.
func LoadAppConfig(dir string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	steps := []func() error{
		func() error { return loadSection(dir, "server", &cfg.Server, infallible(RawServerConfig.ToDomain)) },
		func() error { return loadSection(dir, "security", &cfg.Security, RawSecurityConfig.ToDomain) },
		func() error { return loadSection(dir, "signalling", &cfg.Signalling, RawSignallingConfig.ToDomain) },
		func() error { return loadSection(dir, "webrtc", &cfg.WebRTC, infallible(RawWebRTCConfig.ToDomain)) },
		func() error { return loadSection(dir, "discovery", &cfg.Discovery, RawDiscoveryConfig.ToDomain) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func infallible[R, D any](f func(R) D) func(R) (D, error) {
	return func(r R) (D, error) { return f(r), nil }
}

// loadSection decodes the raw section, validates it and overlays the set
// fields onto dst.
func loadSection[R, D any](dir, name string, dst *D, parse func(R) (D, error)) error {
	var raw R
	if err := decodeSectionFile(dir, name, &raw); err != nil {
		return err
	}
	parsed, err := parse(raw)
	if err != nil {
		return fmt.Errorf("%s config: %w", name, err)
	}
	overlay(reflect.ValueOf(dst).Elem(), reflect.ValueOf(parsed))
	return nil
}

func decodeSectionFile(dir, name string, target any) error {
	for _, format := range sectionFormats {
		path := filepath.Join(dir, name+format.ext)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		err = format.decode(f, target)
		_ = f.Close()

		switch {
		case errors.Is(err, io.EOF):
			slog.Warn("config file is empty, using defaults", "file", path)
			return nil
		case err != nil:
			return fmt.Errorf("decode %s%s: %w", name, format.ext, err)
		}
		return nil
	}
	return nil
}

// overlay copies every set field of src onto dst. Zero scalars, nil
// pointers and empty slices count as unset.
func overlay(dst, src reflect.Value) {
	for i := range src.NumField() {
		from, to := src.Field(i), dst.Field(i)
		switch from.Kind() {
		case reflect.Struct:
			overlay(to, from)
		case reflect.Slice:
			if from.Len() > 0 {
				to.Set(from)
			}
		case reflect.Pointer:
			if !from.IsNil() {
				to.Set(from)
			}
		default:
			if !from.IsZero() {
				to.Set(from)
			}
		}
	}
}
