// Command rvkernel boots the teaching kernel and runs user programs on it.
package main

import "github.com/sarchlab/rvkernel/rvkernel/cmd"

func main() {
	cmd.Execute()
}
