package common

var currentVersion = "dev"

// SetVersion is called once from main with the ldflags-injected version.
func SetVersion(ver string) {
	currentVersion = ver
}

func GetVersion() string {
	return currentVersion
}
