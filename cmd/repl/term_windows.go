package main

func isInteractive() bool {
	return true
}
