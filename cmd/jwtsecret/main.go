// Command jwtsecret prints a fresh hex-encoded shared secret for jwt.shared_secret.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/arklim/directory-auth/internal/infra/security"
)

const envVar = "AUTH_JWT_SHARED_SECRET"

func main() {
	asEnv := pflag.BoolP("env", "e", false, "print as an "+envVar+" assignment for .env files")
	pflag.Parse()

	secret, err := security.GenerateSharedSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate secret: %v\n", err)
		os.Exit(1)
	}

	encoded := security.SerializeSecret(secret)
	if *asEnv {
		fmt.Printf("%s=%s\n", envVar, encoded)
		return
	}
	fmt.Println(encoded)
}
