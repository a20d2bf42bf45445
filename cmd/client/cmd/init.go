package cmd

import (
	"flocksync/cmd/client/cmd/auth"
	"flocksync/cmd/client/cmd/member"
	"flocksync/cmd/client/cmd/sync"
	"flocksync/cmd/client/cmd/watch"
)

func init() {
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.WhoamiCmd)

	rootCmd.AddCommand(member.MemberCmd)
	member.MemberCmd.AddCommand(member.ListCmd)
	member.MemberCmd.AddCommand(member.CreateCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(watch.WatchCmd)
}
