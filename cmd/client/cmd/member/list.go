package member

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"flocksync/internal/domain"
	"flocksync/internal/mirror"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members from the local mirror",
	Long:  `Reads the local mirror only, so it works offline. Run sync first for fresh data.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}

		members, err := mirror.List[domain.Member](cmd.Context(), app.Store(), domain.CollectionMembers, nil)
		if err != nil {
			return err
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].FullName < members[j].FullName
		})

		if len(members) == 0 {
			fmt.Println("no members in the local mirror; run `flocksync sync members`")
			return nil
		}
		for _, m := range members {
			line := m.FullName
			if m.Phone != "" {
				line += "  " + m.Phone
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d member(s)\n", len(members))
		return nil
	},
}
