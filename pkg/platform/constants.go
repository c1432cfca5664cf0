package platform

// Native code ABIs as declared in index documents.
const (
	ABIArm64  = "arm64-v8a"
	ABIArmV7  = "armeabi-v7a"
	ABIArm    = "armeabi"
	ABIX86    = "x86"
	ABIX86_64 = "x86_64"
	ABIMips   = "mips"
	ABIMips64 = "mips64"
)

const (
	// DefaultSDK is the platform version assumed when none is configured.
	DefaultSDK = 34
	// AnyFeature in a device feature list satisfies every feature requirement.
	AnyFeature = "*"
)

// ValidABIs returns the native code architectures the checker understands.
func ValidABIs() []string {
	return []string{
		ABIArm64,
		ABIArmV7,
		ABIArm,
		ABIX86,
		ABIX86_64,
		ABIMips,
		ABIMips64,
	}
}
