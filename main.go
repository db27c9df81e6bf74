// The main package for the shields executable.
package main

import "github.com/JakeFAU/site-shields/cmd"

func main() {
	cmd.Execute()
}
