// ABOUTME: Option model and binder for the download command.
// ABOUTME: Version and similar-package hint stay absent unless supplied.
package options

import "time"

// Download is the validated input of the download command.
type Download struct {
	Organisation       string
	Repository         string
	PAT                Optional[string]
	PackageID          string
	Version            Optional[string]
	SimilarPackagePath Optional[string]
	Timeout            time.Duration
	Region             Optional[string]
}

// DownloadSet declares the download command's options.
var DownloadSet = &Set{
	Command: "download",
	Summary: "Download a package from feedz.io",
	Specs: []Spec{
		organisationSpec("The slug of the organisation to download from"),
		repositorySpec("The slug of the repository to download from"),
		patSpec("Personal access token to use for authentication if the feed is private", false),
		{Name: "id", Usage: "The id of the package to download", Kind: String, Required: true},
		{
			Name:  "version",
			Usage: "The version to download. If not specified, the latest release version is downloaded",
			Kind:  String,
		},
		{
			Name:    "similar-package-path",
			Aliases: []string{"similarPackagePath"},
			Usage:   "Path to a similar package, or a directory to search, used to reduce the transfer size. Defaults to the current directory",
			Kind:    String,
		},
		timeoutSpec("Time to wait for the download to complete in seconds"),
		regionSpec(),
	},
}

// BindDownload parses download arguments.
func BindDownload(args []string) (Download, error) {
	vals, err := DownloadSet.Parse(args)
	if err != nil {
		return Download{}, err
	}
	return Download{
		Organisation:       vals.String("organisation"),
		Repository:         vals.String("repository"),
		PAT:                vals.Optional("pat"),
		PackageID:          vals.String("id"),
		Version:            vals.Optional("version"),
		SimilarPackagePath: vals.Optional("similar-package-path"),
		Timeout:            seconds(vals.Int("timeout")),
		Region:             vals.Optional("region"),
	}, nil
}
