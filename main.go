/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/marvinalivio/p4-backend/cmd"

func main() {
	cmd.Execute()
}
