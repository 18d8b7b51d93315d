package cmd

func init() {
	RegisterCommand(&Command{
		Name:  "version",
		Short: "Show version information",
		Long:  "Print the permit CLI version and build time.",
		Usage: "permit version",
		Run: func(args []string) error {
			printVersion()
			return nil
		},
	})
}
