package env

import "os"

func IsGithubAction() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func IsGithubDebugMode() bool {
	return os.Getenv("RUNNER_DEBUG") == "true"
}

// Returns true when MOM_MERGE_LOCK_DISABLED is set, for callers that already
// serialize merges into the same output directory themselves.
func IsMergeLockDisabled() bool {
	return os.Getenv("MOM_MERGE_LOCK_DISABLED") == "true"
}

// HomeDir returns MOM_HOME when set, for relocating the configuration directory.
func HomeDir() string {
	return os.Getenv("MOM_HOME")
}
