package cmd

import (
	"os"
	"strconv"

	"github.com/3leaps/perfgate/pkg/gateconfig"
)

// ciEnv describes how one CI system exposes its build identity.
type ciEnv struct {
	system    string
	detectVar string
	detectVal string // empty means any non-empty value
	project   string
	number    string
}

var ciEnvs = []ciEnv{
	{system: "Jenkins", detectVar: "JENKINS_URL", project: "JOB_NAME", number: "BUILD_NUMBER"},
	{system: "GitHub", detectVar: "GITHUB_ACTIONS", detectVal: "true", project: "GITHUB_REPOSITORY", number: "GITHUB_RUN_NUMBER"},
	{system: "GitLab", detectVar: "GITLAB_CI", detectVal: "true", project: "CI_PROJECT_PATH", number: "CI_PIPELINE_IID"},
	{system: "Buildkite", detectVar: "BUILDKITE", detectVal: "true", project: "BUILDKITE_PIPELINE_SLUG", number: "BUILDKITE_BUILD_NUMBER"},
	{system: "CircleCI", detectVar: "CIRCLECI", detectVal: "true", project: "CIRCLE_PROJECT_REPONAME", number: "CIRCLE_BUILD_NUM"},
}

// detectBuild fills empty build identity fields from the CI environment.
// Values already set by the manifest or flags are kept.
func detectBuild(s *gateconfig.Settings, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, ci := range ciEnvs {
		v := getenv(ci.detectVar)
		if v == "" || (ci.detectVal != "" && v != ci.detectVal) {
			continue
		}
		if s.BuildSystem == "" {
			s.BuildSystem = ci.system
		}
		if s.BuildProject == "" {
			s.BuildProject = getenv(ci.project)
		}
		if s.BuildNumber == 0 {
			if n, err := strconv.Atoi(getenv(ci.number)); err == nil && n > 0 {
				s.BuildNumber = n
			}
		}
		return
	}
}
