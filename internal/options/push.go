// ABOUTME: Option model and binder for the push command.
// ABOUTME: Accumulates repeated --file flags in the order given.
package options

import "time"

// Push is the validated input of the push command.
type Push struct {
	Organisation string
	Repository   string
	PAT          string
	Files        []string
	Force        bool
	Timeout      time.Duration
	Region       Optional[string]
}

// PushSet declares the push command's options.
var PushSet = &Set{
	Command: "push",
	Summary: "Push packages to feedz.io",
	Specs: []Spec{
		organisationSpec("The slug of the organisation to push to"),
		repositorySpec("The slug of the repository to push to"),
		patSpec("Personal access token to use for authentication", true),
		{
			Name:     "file",
			Aliases:  []string{"files", "package", "f"},
			Usage:    "Package file to push. Specify multiple times to push multiple packages",
			Kind:     StringList,
			Required: true,
		},
		{Name: "force", Usage: "Overwrite any existing package with the same id and version", Kind: Bool},
		timeoutSpec("Time to wait for each push to complete in seconds"),
		regionSpec(),
	},
}

// BindPush parses push arguments.
func BindPush(args []string) (Push, error) {
	vals, err := PushSet.Parse(args)
	if err != nil {
		return Push{}, err
	}
	return Push{
		Organisation: vals.String("organisation"),
		Repository:   vals.String("repository"),
		PAT:          vals.String("pat"),
		Files:        vals.Strings("file"),
		Force:        vals.Bool("force"),
		Timeout:      seconds(vals.Int("timeout")),
		Region:       vals.Optional("region"),
	}, nil
}
