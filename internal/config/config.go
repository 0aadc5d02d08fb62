package config

import (
	"path/filepath"
	"strings"

	"github.com/gravitational/trace"
)

const (
	DefaultFile = "olovebar.yaml"

	DefaultAppName            = "OLoveBar"
	DefaultBundleID           = "com.sacrilege.olovebar"
	DefaultBinaryName         = "olovebar"
	DefaultInstallPath        = "/usr/local/bin/olovebar"
	DefaultInfoPlist          = "Info.plist"
	DefaultLogo               = "Resources/logo.png"
	DefaultBuildConfiguration = "release"
	DefaultMinMacOSMajor      = 26
	DefaultCask               = "Casks/olovebar.rb"
	DefaultGitHubOwner        = "SacrilegeWasTaken"
	DefaultGitHubRepo         = "olovebar"
)

// GitHub identifies the repository releases are published to.
type GitHub struct {
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
}

// Project is the packaging configuration of the application.
// Every field is optional; unset fields fall back to the OLoveBar defaults.
type Project struct {
	// AppName is the bundle name and the name of the executable inside Contents/MacOS.
	AppName string `json:"app_name,omitempty"`
	// BundleID is the reverse-DNS bundle identifier.
	BundleID string `json:"bundle_id,omitempty"`
	// BinaryName is the name of the compiled executable.
	BinaryName string `json:"binary_name,omitempty"`
	// InstallPath is where install copies the binary to.
	InstallPath string `json:"install_path,omitempty"`
	// InfoPlist is the descriptor copied into the bundle, relative to the working directory.
	InfoPlist string `json:"info_plist,omitempty"`
	// Logo is the source image for the icon set.
	Logo string `json:"logo,omitempty"`
	// SwiftProduct is the product passed to swift build. Defaults to BinaryName.
	SwiftProduct string `json:"swift_product,omitempty"`
	// BuildConfiguration is debug or release.
	BuildConfiguration string `json:"build_configuration,omitempty"`
	// MinMacOSMajor is the oldest supported macOS major version.
	MinMacOSMajor int `json:"min_macos_major,omitempty"`
	// Cask is the Homebrew cask updated on release.
	Cask string `json:"cask,omitempty"`
	// GitHub is where releases are published.
	GitHub GitHub `json:"github,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Project {
	p := &Project{}
	p.applyDefaults()
	return p
}

func (p *Project) applyDefaults() {
	setDefault(&p.AppName, DefaultAppName)
	setDefault(&p.BundleID, DefaultBundleID)
	setDefault(&p.BinaryName, DefaultBinaryName)
	setDefault(&p.InstallPath, filepath.Join("/usr/local/bin", p.BinaryName))
	setDefault(&p.InfoPlist, DefaultInfoPlist)
	setDefault(&p.Logo, DefaultLogo)
	setDefault(&p.SwiftProduct, p.BinaryName)
	setDefault(&p.BuildConfiguration, DefaultBuildConfiguration)
	setDefault(&p.Cask, DefaultCask)
	setDefault(&p.GitHub.Owner, DefaultGitHubOwner)
	setDefault(&p.GitHub.Repo, DefaultGitHubRepo)
	if p.MinMacOSMajor == 0 {
		p.MinMacOSMajor = DefaultMinMacOSMajor
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func (p *Project) validate() error {
	if strings.ContainsRune(p.AppName, filepath.Separator) {
		return trace.BadParameter("app_name %q must not contain a path separator", p.AppName)
	}
	if strings.ContainsRune(p.BinaryName, filepath.Separator) {
		return trace.BadParameter("binary_name %q must not contain a path separator", p.BinaryName)
	}
	if !filepath.IsAbs(p.InstallPath) {
		return trace.BadParameter("install_path %q must be absolute", p.InstallPath)
	}
	switch p.BuildConfiguration {
	case "debug", "release":
	default:
		return trace.BadParameter("build_configuration must be debug or release, got %q", p.BuildConfiguration)
	}
	if p.MinMacOSMajor < 0 {
		return trace.BadParameter("min_macos_major must be positive, got %d", p.MinMacOSMajor)
	}
	return nil
}

// BuildOutput returns the path swift build places the binary at, relative to the project directory.
func (p *Project) BuildOutput() string {
	return filepath.Join(".build", p.BuildConfiguration, p.BinaryName)
}
