package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.validate())

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":8081", cfg.HTTP.RedirectAddr)
	assert.Equal(t, time.Minute, cfg.HTTP.RateWindow)
	assert.Equal(t, "/etc/nginx/conf.d/redirects", cfg.Nginx.ConfigDir)
	assert.Equal(t, ReloadDriverNone, cfg.Reload.Driver)
	assert.Equal(t, 5*time.Second, cfg.Reload.Timeout)
	assert.Empty(t, cfg.Resync.Schedule)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		reload  ReloadConfig
		wantErr bool
	}{
		{"none", ReloadConfig{Driver: ReloadDriverNone}, false},
		{"containerd without container", ReloadConfig{Driver: ReloadDriverContainerd}, true},
		{"containerd", ReloadConfig{Driver: ReloadDriverContainerd, ContainerID: "nginx"}, false},
		{"pidfile without path", ReloadConfig{Driver: ReloadDriverPIDFile}, true},
		{"pidfile", ReloadConfig{Driver: ReloadDriverPIDFile, PIDFile: "/run/nginx.pid"}, false},
		{"unknown", ReloadConfig{Driver: "ssh"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Nginx: NginxConfig{ConfigDir: "/tmp/redirects"}, Reload: tt.reload}
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	// Equivalent of t.Chdir (Go 1.24+) for the Go 1.21 toolchain.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("NGINX_CONFIG_DIR", "/srv/nginx/redirects")
	t.Setenv("RELOAD_DRIVER", ReloadDriverPIDFile)
	t.Setenv("NGINX_PID_FILE", "/run/nginx.pid")
	t.Setenv("RESYNC_SCHEDULE", "*/5 * * * *")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/nginx/redirects", cfg.Nginx.ConfigDir)
	assert.Equal(t, ReloadDriverPIDFile, cfg.Reload.Driver)
	assert.Equal(t, "/run/nginx.pid", cfg.Reload.PIDFile)
	assert.Equal(t, "*/5 * * * *", cfg.Resync.Schedule)
}
