// ABOUTME: Option model and binder for the list command.
// ABOUTME: Package id narrows the listing to one package.
package options

// List is the validated input of the list command.
type List struct {
	Organisation string
	Repository   string
	PAT          Optional[string]
	PackageID    Optional[string]
	Region       Optional[string]
}

// ListSet declares the list command's options.
var ListSet = &Set{
	Command: "list",
	Summary: "List packages on feedz.io",
	Specs: []Spec{
		organisationSpec("The slug of the organisation"),
		repositorySpec("The slug of the repository"),
		patSpec("Personal access token to use for authentication if the feed is private", false),
		{Name: "id", Usage: "The id of the package to list. If omitted, all packages are listed", Kind: String},
		regionSpec(),
	},
}

// BindList parses list arguments.
func BindList(args []string) (List, error) {
	vals, err := ListSet.Parse(args)
	if err != nil {
		return List{}, err
	}
	return List{
		Organisation: vals.String("organisation"),
		Repository:   vals.String("repository"),
		PAT:          vals.Optional("pat"),
		PackageID:    vals.Optional("id"),
		Region:       vals.Optional("region"),
	}, nil
}
