// Generates signing material for the service: a random hex secret by
// default, or a PEM encoded RSA key pair with -rsa.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

func main() {
	genRSA := flag.Bool("rsa", false, "generate a PEM encoded RSA key pair instead of a hex secret")
	bits := flag.Int("bits", 2048, "RSA key size")
	flag.Parse()

	if *genRSA {
		if err := printRSAKeyPair(*bits); err != nil {
			fmt.Printf("error while generating key pair: %v", err)
			os.Exit(1)
		}
		return
	}

	b := make([]byte, SecretKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		fmt.Printf("error while generating secret key: %v", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}

func printRSAKeyPair(bits int) error {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	private := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	public := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicBytes,
	})

	fmt.Print(string(private))
	fmt.Print(string(public))
	return nil
}
