package repository

import (
	"fmt"
	"runtime"
	"strings"
)

// OS is an operating system a download artifact targets.
type OS string

const (
	Windows OS = "windows"
	Mac     OS = "mac"
	Linux   OS = "linux"
	AnyOS   OS = "any"
)

// Arch is a CPU architecture a download artifact targets.
type Arch string

const (
	X64     Arch = "x64"
	Arm64   Arch = "arm64"
	AnyArch Arch = "any"
)

// Platform is an (OS, Arch) combination. It keys the URL entries of a
// Version.
type Platform struct {
	OS   OS
	Arch Arch
}

// AnyPlatform keys artifacts that run everywhere, such as npm tarballs.
var AnyPlatform = Platform{OS: AnyOS, Arch: AnyArch}

// Platforms lists every concrete platform combination.
func Platforms() []Platform {
	return []Platform{
		{Windows, X64}, {Windows, Arm64},
		{Mac, X64}, {Mac, Arm64},
		{Linux, X64}, {Linux, Arm64},
	}
}

func (p Platform) String() string {
	return string(p.OS) + "-" + string(p.Arch)
}

// IsAny reports whether p is the platform-independent key.
func (p Platform) IsAny() bool {
	return p == AnyPlatform
}

// MarshalText implements encoding.TextMarshaler so platforms can key JSON maps.
func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(text []byte) error {
	parsed, err := ParsePlatform(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlatform parses "<os>-<arch>", accepting common aliases such as
// "darwin-amd64" or "linux-aarch64".
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "any" {
		return AnyPlatform, nil
	}
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return Platform{}, fmt.Errorf("invalid platform %q", s)
	}
	os, err := ParseOS(s[:i])
	if err != nil {
		return Platform{}, err
	}
	arch, err := ParseArch(s[i+1:])
	if err != nil {
		return Platform{}, err
	}
	return Platform{OS: os, Arch: arch}, nil
}

// ParseOS normalizes an operating system name.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win", "win32":
		return Windows, nil
	case "mac", "macos", "darwin", "osx":
		return Mac, nil
	case "linux":
		return Linux, nil
	case "any", "*", "":
		return AnyOS, nil
	}
	return "", fmt.Errorf("unknown operating system %q", s)
}

// ParseArch normalizes an architecture name.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x64", "amd64", "x86_64":
		return X64, nil
	case "arm64", "aarch64":
		return Arm64, nil
	case "any", "*", "":
		return AnyArch, nil
	}
	return "", fmt.Errorf("unknown architecture %q", s)
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	os, err := ParseOS(runtime.GOOS)
	if err != nil {
		os = AnyOS
	}
	arch, err := ParseArch(runtime.GOARCH)
	if err != nil {
		arch = AnyArch
	}
	return Platform{OS: os, Arch: arch}
}
