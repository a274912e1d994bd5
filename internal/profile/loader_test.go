package profile

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabinapal/sstray/internal/proxy"
)

const fakeBinary = "/opt/shadowsocks/sslocal"

func configFileDoc(extra string) string {
	return "mode: config-file\nconfig_path: ss.json\n" + extra
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeProfile(t *testing.T, dir, doc string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, ConfigFileName), doc)
}

func writeIgnore(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, IgnoreFileName), "")
}

func writeExecutable(t *testing.T, path string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return canonical(t, path)
}

func canonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func fixedBinary(path string) LoaderOption {
	return WithDefaultBinary(func() (string, error) { return path, nil })
}

func displayNames(profiles []*Profile) []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.DisplayName())
	}
	return names
}

type mapSecrets map[string]string

func (m mapSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.Newf("no entry for %q", key)
	}
	return v, nil
}

func TestLoad_SingleProfileRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "home")
	writeProfile(t, root, configFileDoc(""))

	folder, err := Load(root, fixedBinary(fakeBinary))
	require.NoError(t, err)

	require.False(t, folder.IsGroup())
	assert.Equal(t, 1, folder.ProfileCount())

	p := folder.Profile
	assert.Equal(t, Metadata{
		DisplayName: "home",
		Pwd:         canonical(t, root),
		BinPath:     fakeBinary,
	}, p.Metadata())
	assert.Equal(t, canonical(t, root), p.Dir())
	assert.Equal(t, ModeConfigFile, p.Mode())
}

func TestLoad_NestedGroups(t *testing.T) {
	root := filepath.Join(t.TempDir(), "profiles")
	writeProfile(t, filepath.Join(root, "europe", "amsterdam"), proxyDoc)
	writeProfile(t, filepath.Join(root, "europe", "berlin"), configFileDoc("display_name: Berlin\n"))
	writeProfile(t, filepath.Join(root, "tokyo"), proxyDoc)

	folder, err := Load(root, fixedBinary(fakeBinary))
	require.NoError(t, err)

	require.True(t, folder.IsGroup())
	assert.Equal(t, "profiles", folder.DisplayName())
	require.Len(t, folder.Group.Children, 2)

	europe := folder.Group.Children[0]
	require.True(t, europe.IsGroup())
	assert.Equal(t, "europe", europe.DisplayName())
	assert.Equal(t, 2, europe.ProfileCount())

	profiles := folder.Profiles()
	assert.Equal(t, 3, folder.ProfileCount())
	assert.Len(t, profiles, folder.ProfileCount())
	assert.Equal(t, []string{"amsterdam", "Berlin", "tokyo"}, displayNames(profiles))

	p, ok := folder.Lookup("Berlin")
	require.True(t, ok)
	assert.Equal(t, canonical(t, filepath.Join(root, "europe", "berlin")), p.Dir())

	_, ok = folder.Lookup("berlin")
	assert.False(t, ok)
}

func TestLoad_MarkerTakesPrecedenceOverContents(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "work")
	writeProfile(t, dir, configFileDoc(""))
	writeFile(t, filepath.Join(dir, "ss.json"), "{}")
	writeProfile(t, filepath.Join(dir, "nested"), configFileDoc(""))

	folder, err := Load(dir, fixedBinary(fakeBinary))
	require.NoError(t, err)
	require.False(t, folder.IsGroup())
	assert.Equal(t, "work", folder.DisplayName())
}

func TestLoad_Ignore(t *testing.T) {
	t.Run("ignored subtree leaves no node", func(t *testing.T) {
		root := t.TempDir()
		writeProfile(t, filepath.Join(root, "keep"), configFileDoc(""))
		writeIgnore(t, filepath.Join(root, "old"))
		writeProfile(t, filepath.Join(root, "old", "keep"), configFileDoc(""))
		writeFile(t, filepath.Join(root, "old", "notes.txt"), "stale")

		folder, err := Load(root, fixedBinary(fakeBinary))
		require.NoError(t, err)
		require.True(t, folder.IsGroup())
		require.Len(t, folder.Group.Children, 1)
		assert.Equal(t, []string{"keep"}, displayNames(folder.Profiles()))
	})

	t.Run("ignore wins over profile marker", func(t *testing.T) {
		root := t.TempDir()
		writeProfile(t, filepath.Join(root, "a"), configFileDoc(""))
		writeProfile(t, filepath.Join(root, "b"), "not: [valid")
		writeIgnore(t, filepath.Join(root, "b"))

		folder, err := Load(root, fixedBinary(fakeBinary))
		require.NoError(t, err)
		assert.Equal(t, 1, folder.ProfileCount())
	})

	t.Run("ignored root", func(t *testing.T) {
		root := t.TempDir()
		writeIgnore(t, root)
		writeProfile(t, filepath.Join(root, "a"), configFileDoc(""))

		_, err := Load(root, fixedBinary(fakeBinary))
		assert.ErrorIs(t, err, ErrEmptyGroup)
	})

	t.Run("group of only ignored children is empty", func(t *testing.T) {
		root := t.TempDir()
		writeProfile(t, filepath.Join(root, "a"), configFileDoc(""))
		writeIgnore(t, filepath.Join(root, "archive", "x"))
		writeIgnore(t, filepath.Join(root, "archive", "y"))

		_, err := Load(root, fixedBinary(fakeBinary))
		require.ErrorIs(t, err, ErrEmptyGroup)

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, canonical(t, filepath.Join(root, "archive")), loadErr.Path)
	})
}

func TestLoad_EmptyRoot(t *testing.T) {
	_, err := Load(t.TempDir(), fixedBinary(fakeBinary))
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestLoad_NameConflict(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, root string)
	}{
		{
			name: "override collides with sibling directory",
			build: func(t *testing.T, root string) {
				writeProfile(t, filepath.Join(root, "a"), configFileDoc("display_name: b\n"))
				writeProfile(t, filepath.Join(root, "b"), configFileDoc(""))
			},
		},
		{
			name: "same directory name in different branches",
			build: func(t *testing.T, root string) {
				writeProfile(t, filepath.Join(root, "home", "vpn"), configFileDoc(""))
				writeProfile(t, filepath.Join(root, "work", "deep", "vpn"), configFileDoc(""))
			},
		},
		{
			name: "two overrides with the same name",
			build: func(t *testing.T, root string) {
				writeProfile(t, filepath.Join(root, "x"), configFileDoc("display_name: Office\n"))
				writeProfile(t, filepath.Join(root, "y"), configFileDoc("display_name: Office\n"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.build(t, root)

			folder, err := Load(root, fixedBinary(fakeBinary))
			assert.Nil(t, folder)
			assert.ErrorIs(t, err, ErrNameConflict)
		})
	}
}

func TestLoad_GroupNamesMayRepeatProfileNames(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "vpn", "vpn"), configFileDoc(""))

	folder, err := Load(root, fixedBinary(fakeBinary))
	require.NoError(t, err)
	assert.Equal(t, []string{"vpn"}, displayNames(folder.Profiles()))
}

func TestLoad_NoConfigFile(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "good"), configFileDoc(""))
	writeFile(t, filepath.Join(root, "half", "ss.json"), "{}")

	_, err := Load(root, fixedBinary(fakeBinary))
	require.ErrorIs(t, err, ErrNoConfigFile)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, canonical(t, filepath.Join(root, "half")), loadErr.Path)
	assert.Contains(t, err.Error(), "ss.json")
}

func TestLoad_ConfigParseAbortsEnclosingGroup(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "a-good"), configFileDoc(""))
	writeProfile(t, filepath.Join(root, "b-bad"), "mode: proxy\nlocal_addr: [127.0.0.1, 1080]\n")
	writeProfile(t, filepath.Join(root, "c-good"), configFileDoc(""))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	folder, err := Load(root, fixedBinary(fakeBinary), WithLogger(logger))
	assert.Nil(t, folder)
	require.ErrorIs(t, err, ErrConfigParse)
	assert.NotErrorIs(t, err, ErrIO)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(canonical(t, filepath.Join(root, "b-bad")), ConfigFileName), loadErr.Path)
	assert.Contains(t, err.Error(), "missing field `server_addr`")
	assert.Contains(t, logs.String(), "Cannot load a subdirectory")
}

func TestLoad_EmptyDisplayNameIsRejected(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "tokyo"), configFileDoc("display_name: \"\"\n"))

	folder, err := Load(root, fixedBinary(fakeBinary))
	assert.Nil(t, folder)
	require.ErrorIs(t, err, ErrConfigParse)
	assert.Contains(t, err.Error(), "`display_name` must not be empty")
}

func TestLoad_NotDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "profile.yaml")
	writeFile(t, file, configFileDoc(""))

	_, err := Load(file, fixedBinary(fakeBinary))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestLoad_MissingRoot(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), fixedBinary(fakeBinary))
	assert.ErrorIs(t, err, ErrIO)
}

func TestLoad_BadBinary(t *testing.T) {
	t.Run("default binary missing", func(t *testing.T) {
		root := t.TempDir()
		writeProfile(t, root, configFileDoc(""))

		_, err := Load(root, WithDefaultBinary(func() (string, error) {
			return "", errors.New("sslocal not found in PATH")
		}))
		require.ErrorIs(t, err, ErrBadBinary)
		assert.Contains(t, err.Error(), "sslocal not found in PATH")
	})

	t.Run("override missing", func(t *testing.T) {
		root := t.TempDir()
		writeProfile(t, root, configFileDoc("bin_path: ./bin/does-not-exist\n"))

		_, err := Load(root, fixedBinary(fakeBinary))
		assert.ErrorIs(t, err, ErrBadBinary)
	})

	t.Run("override not executable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("executable bits are not meaningful on windows")
		}
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "bin", "sslocal"), "plain file")
		writeProfile(t, root, configFileDoc("bin_path: bin/sslocal\n"))

		_, err := Load(root, fixedBinary(fakeBinary))
		assert.ErrorIs(t, err, ErrBadBinary)
	})
}

func TestLoad_Overrides(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "office")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "work"), 0o755))
	shared := filepath.Join(root, "shared")
	require.NoError(t, os.MkdirAll(shared, 0o755))
	bin := writeExecutable(t, filepath.Join(dir, "bin", "sslocal"))

	t.Run("relative paths resolve against the profile", func(t *testing.T) {
		writeProfile(t, dir, configFileDoc("display_name: Office\npwd: work\nbin_path: bin/sslocal\n"))

		folder, err := Load(dir, fixedBinary(fakeBinary))
		require.NoError(t, err)
		assert.Equal(t, Metadata{
			DisplayName: "Office",
			Pwd:         canonical(t, filepath.Join(dir, "work")),
			BinPath:     bin,
		}, folder.Profile.Metadata())
	})

	t.Run("parent-relative pwd", func(t *testing.T) {
		writeProfile(t, dir, configFileDoc("pwd: ../shared\n"))

		folder, err := Load(dir, fixedBinary(fakeBinary))
		require.NoError(t, err)
		assert.Equal(t, canonical(t, shared), folder.Profile.Metadata().Pwd)
	})

	t.Run("absolute bin_path", func(t *testing.T) {
		writeProfile(t, dir, configFileDoc("bin_path: "+bin+"\n"))

		folder, err := Load(dir, fixedBinary(fakeBinary))
		require.NoError(t, err)
		assert.Equal(t, bin, folder.Profile.Metadata().BinPath)
	})

	t.Run("missing pwd", func(t *testing.T) {
		writeProfile(t, dir, configFileDoc("pwd: gone\n"))

		_, err := Load(dir, fixedBinary(fakeBinary))
		assert.ErrorIs(t, err, ErrIO)
	})

	t.Run("bare name goes through the runner", func(t *testing.T) {
		writeProfile(t, dir, configFileDoc("bin_path: sslocal-rust\n"))

		runner := proxy.NewMockRunner()
		runner.LookPathFunc = func(file string) (string, error) {
			if file == "sslocal-rust" {
				return bin, nil
			}
			return "", errors.Newf("unexpected lookup %q", file)
		}

		folder, err := Load(dir, fixedBinary(fakeBinary), WithCommandRunner(runner))
		require.NoError(t, err)
		assert.Equal(t, bin, folder.Profile.Metadata().BinPath)
		assert.Equal(t, []string{"sslocal-rust"}, runner.Lookups())
	})
}

func TestNewBinaryResolver_LooksUpOnce(t *testing.T) {
	bin := writeExecutable(t, filepath.Join(t.TempDir(), "sslocal"))

	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "a"), proxyDoc)
	writeProfile(t, filepath.Join(root, "b"), proxyDoc)
	writeProfile(t, filepath.Join(root, "c", "d"), configFileDoc(""))

	runner := proxy.NewMockRunner()
	runner.LookPathFunc = func(string) (string, error) { return bin, nil }
	resolve := NewBinaryResolver(runner, DefaultBinaryName)

	folder, err := Load(root, WithDefaultBinary(resolve))
	require.NoError(t, err)
	for _, p := range folder.Profiles() {
		assert.Equal(t, bin, p.Metadata().BinPath)
	}

	_, err = Load(root, WithDefaultBinary(resolve))
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultBinaryName}, runner.Lookups())
}

func TestNewBinaryResolver_FailureIsRemembered(t *testing.T) {
	runner := proxy.NewMockRunner()
	runner.LookPathFunc = func(string) (string, error) { return "", errors.New("not found") }
	resolve := NewBinaryResolver(runner, DefaultBinaryName)

	_, err1 := resolve()
	_, err2 := resolve()
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Len(t, runner.Lookups(), 1)
}

func TestLoad_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "real"), configFileDoc(""))
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real", ConfigFileName), filepath.Join(root, "stray.yaml")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	folder, err := Load(root, fixedBinary(fakeBinary), WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, displayNames(folder.Profiles()))
	assert.Contains(t, logs.String(), "Skipping symlink")
}

func TestLoad_SymlinkedRootIsFollowed(t *testing.T) {
	target := filepath.Join(t.TempDir(), "target")
	writeProfile(t, filepath.Join(target, "p"), configFileDoc(""))
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	folder, err := Load(link, fixedBinary(fakeBinary))
	require.NoError(t, err)
	assert.Equal(t, "target", folder.DisplayName())
	assert.Equal(t, canonical(t, filepath.Join(target, "p")), folder.Profiles()[0].Dir())
}

func TestLoad_PasswordKeyring(t *testing.T) {
	doc := `mode: proxy
display_name: Tokyo
local_addr: [127.0.0.1, 1080]
server_addr: [jp.example.com, 8388]
password_keyring: true
encrypt_method: aes-128-gcm
`
	root := t.TempDir()
	writeProfile(t, root, doc)

	t.Run("found", func(t *testing.T) {
		folder, err := Load(root, fixedBinary(fakeBinary), WithSecretStore(mapSecrets{"Tokyo": "from-keyring"}))
		require.NoError(t, err)

		args, err := folder.Profile.LaunchArgs()
		require.NoError(t, err)
		assert.Equal(t, "from-keyring", args[5])
	})

	t.Run("missing entry loads but cannot launch", func(t *testing.T) {
		folder, err := Load(root, fixedBinary(fakeBinary), WithSecretStore(mapSecrets{}))
		require.NoError(t, err)
		assert.Equal(t, 1, folder.ProfileCount())

		_, err = folder.Profile.LaunchArgs()
		assert.ErrorIs(t, err, ErrSecretUnavailable)

		status := folder.Profile.Status()
		assert.Empty(t, status.LaunchArgs)
		assert.Contains(t, status.ArgsError, "secret unavailable")
	})

	t.Run("no store", func(t *testing.T) {
		folder, err := Load(root, fixedBinary(fakeBinary))
		require.NoError(t, err)

		_, err = folder.Profile.Run(context.Background(), nil, nil, proxy.WithCommandRunner(proxy.NewMockRunner()))
		assert.ErrorIs(t, err, ErrSecretUnavailable)
	})

	t.Run("read on every launch", func(t *testing.T) {
		secrets := mapSecrets{}
		folder, err := Load(root, fixedBinary(fakeBinary), WithSecretStore(secrets))
		require.NoError(t, err)

		secrets["Tokyo"] = "stored-later"
		args, err := folder.Profile.LaunchArgs()
		require.NoError(t, err)
		assert.Equal(t, "stored-later", args[5])

		opts, ok := folder.Profile.Options().(*ProxyOptions)
		require.True(t, ok)
		assert.Empty(t, opts.Password.Reveal(), "loaded options keep no password")
	})
}

func TestProfile_Run(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, filepath.Join(root, "a"), proxyDoc)
	writeProfile(t, filepath.Join(root, "t"), "mode: tun\n")

	folder, err := Load(root, fixedBinary(fakeBinary))
	require.NoError(t, err)

	t.Run("launches sslocal", func(t *testing.T) {
		runner := proxy.NewMockRunner()
		runner.Output = "listening\n"
		var stdout bytes.Buffer

		p, ok := folder.Lookup("a")
		require.True(t, ok)

		h, err := p.Run(context.Background(), &stdout, nil, proxy.WithCommandRunner(runner))
		require.NoError(t, err)

		code, err := h.Wait()
		require.NoError(t, err)
		assert.Zero(t, code)

		cmds := runner.Commands()
		require.Len(t, cmds, 1)
		assert.Equal(t, fakeBinary, cmds[0].Name)
		assert.Equal(t, p.Metadata().Pwd, cmds[0].Dir)
		assert.Equal(t, []string{
			"--local-addr", "127.0.0.1:1080",
			"--server-addr", "example.com:8388",
			"--password", "secret",
			"--encrypt-method", "aes-256-gcm",
		}, cmds[0].Args)
		assert.Equal(t, "listening\n", stdout.String())
		assert.Nil(t, cmds[0].Stderr)
	})

	t.Run("tun refuses to start", func(t *testing.T) {
		runner := proxy.NewMockRunner()

		p, ok := folder.Lookup("t")
		require.True(t, ok)

		_, err := p.Run(context.Background(), nil, nil, proxy.WithCommandRunner(runner))
		assert.ErrorIs(t, err, ErrTunUnimplemented)
		assert.Empty(t, runner.Commands())
	})
}

func TestProfile_Status(t *testing.T) {
	root := t.TempDir()
	writeProfile(t, root, proxyDoc)

	folder, err := Load(root, fixedBinary(fakeBinary))
	require.NoError(t, err)

	status := folder.Profile.Status()
	assert.Equal(t, ModeProxy, status.Mode)
	assert.Empty(t, status.ArgsError)
	assert.NotContains(t, status.LaunchArgs, "secret")
	assert.Contains(t, status.LaunchArgs, "*hidden*")
}
