package version

// Version is the Major.Minor.Patch tag of the build, set with
// -ldflags "-X github.com/jake-scott/smartrent-lock/version.Version=..."
var Version string = "dev"

// UserAgent identifies us to the SmartRent API
func UserAgent() string {
	return "smartrent-lock/" + Version
}
