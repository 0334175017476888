package services

import (
	"fmt"
	"math/rand"
	"strconv"
)

const questionIDMaxTries = 10

// GenerateQuestionID returns a random 6-digit identifier not present in
// existing. Errors after a bounded number of collisions.
func GenerateQuestionID(existing map[string]struct{}) (string, error) {
	for i := 0; i < questionIDMaxTries; i++ {
		qid := strconv.Itoa(100000 + rand.Intn(900000))
		if _, taken := existing[qid]; !taken {
			return qid, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique question id after %d attempts", questionIDMaxTries)
}
