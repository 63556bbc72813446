package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/desertthunder/nowplaying/internal/models"
)

// CodeGenerator draws a join code.
type CodeGenerator func() (string, error)

var alphabetSize = big.NewInt(int64(len(models.CodeAlphabet)))

// RandomCode draws [models.CodeLength] characters uniformly from [models.CodeAlphabet].
func RandomCode() (string, error) {
	code := make([]byte, models.CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to draw code: %w", err)
		}
		code[i] = models.CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
