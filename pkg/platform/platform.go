package platform

import (
	"runtime"
	"slices"
	"strings"

	"github.com/glorpus-work/appcat/pkg/model"
)

// Device describes the platform packages are evaluated against.
type Device struct {
	SDK      int      `yaml:"sdk" toml:"sdk" json:"sdk"`
	Features []string `yaml:"features,omitempty" toml:"features,omitempty" json:"features,omitempty"`
	ABIs     []string `yaml:"abis,omitempty" toml:"abis,omitempty" json:"abis,omitempty"`
}

// DefaultDevice returns a device at DefaultSDK with the ABIs the host CPU can run.
func DefaultDevice() Device {
	return Device{
		SDK:  DefaultSDK,
		ABIs: HostABIs(runtime.GOARCH),
	}
}

// HostABIs maps a Go architecture to the native ABIs it executes, preferred first.
func HostABIs(goarch string) []string {
	switch NormalizeABI(goarch) {
	case ABIX86_64:
		return []string{ABIX86_64, ABIX86}
	case ABIX86:
		return []string{ABIX86}
	case ABIArm64:
		return []string{ABIArm64, ABIArmV7, ABIArm}
	case ABIArmV7:
		return []string{ABIArmV7, ABIArm}
	default:
		return []string{NormalizeABI(goarch)}
	}
}

// NormalizeABI normalizes architecture names to the ABI names used in indexes.
func NormalizeABI(arch string) string {
	arch = strings.ToLower(strings.TrimSpace(arch))
	switch arch {
	case "x86_64", "x64", "amd64":
		return ABIX86_64
	case "x86", "386", "i386", "i686":
		return ABIX86
	case "arm64", "aarch64", "arm64-v8a":
		return ABIArm64
	case "arm", "armv7", "armv7l", "armeabi-v7a":
		return ABIArmV7
	case "mips64", "mips64le":
		return ABIMips64
	case "mips", "mipsle":
		return ABIMips
	default:
		return arch
	}
}

// Normalize returns a copy of d with ABI names normalized and duplicates removed.
func (d Device) Normalize() Device {
	out := Device{SDK: d.SDK, Features: slices.Clone(d.Features)}
	for _, abi := range d.ABIs {
		n := NormalizeABI(abi)
		if n != "" && !slices.Contains(out.ABIs, n) {
			out.ABIs = append(out.ABIs, n)
		}
	}
	return out
}

func (d Device) hasFeature(feature string) bool {
	return slices.Contains(d.Features, AnyFeature) || slices.Contains(d.Features, feature)
}

func (d Device) supportsAny(abis []string) bool {
	for _, abi := range abis {
		if slices.Contains(d.ABIs, NormalizeABI(abi)) {
			return true
		}
	}
	return false
}

// Check reports whether pkg can run on d. Only the first failing rule is reported,
// in the order: too new, too old, missing feature, unsupported architecture.
// The device is expected to be normalized.
func Check(d Device, pkg *model.Package) (bool, model.Reason) {
	if pkg.MinSDK > 0 && pkg.MinSDK > d.SDK {
		return false, model.ReasonPlatformTooNew
	}
	if pkg.MaxSDK > 0 && pkg.MaxSDK < d.SDK {
		return false, model.ReasonPlatformTooOld
	}
	for _, feature := range pkg.Features {
		if !d.hasFeature(feature) {
			return false, model.ReasonMissingFeature
		}
	}
	if len(pkg.NativeCode) > 0 && !d.supportsAny(pkg.NativeCode) {
		return false, model.ReasonUnsupportedABI
	}
	return true, model.ReasonNone
}

// Annotate records the compatibility verdict on every package of apps.
func Annotate(d Device, apps []*model.App) {
	d = d.Normalize()
	for _, app := range apps {
		for _, pkg := range app.Packages {
			pkg.Compatible, pkg.IncompatibleReason = Check(d, pkg)
		}
	}
}
