package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateRunID stamps a generator run so its report and log lines can be
// correlated.
func GenerateRunID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("gen_%d_%06d", timestamp, randomNum.Int64())
}
