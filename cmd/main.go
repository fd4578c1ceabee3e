package main

import "ZhaoYaoJing/pkg/cli"

func main() {
	cli.Execute()
}
