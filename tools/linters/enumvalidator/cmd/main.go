package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"lifecalendar.app/api/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
