package main

import "faultsense/internal/failures"

func isSkip(err error) bool {
	return failures.Classify(err) == failures.KindSkip
}
