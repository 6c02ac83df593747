// Package main generates a Certificate Authority (CA) and a server
// certificate, writing them to files under the output directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/GophAuth/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run generates ca.crt/ca.key (unless an existing CA is reused) and
// server.crt/server.key in the output directory.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	reuseCA := fs.Bool("reuse-ca", false, "sign with the existing ca.crt/ca.key in the output directory")
	validity := fs.Duration("validity", 365*24*time.Hour, "server certificate validity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", *dir, err)
	}
	caCertPath := filepath.Join(*dir, "ca.crt")
	caKeyPath := filepath.Join(*dir, "ca.key")

	// 1. Generate or load the CA certificate and key.
	if !*reuseCA {
		caPEM, caKeyPEM, err := certgen.GenerateCA("GophAuth CA", 10*365*24*time.Hour)
		if err != nil {
			return err
		}
		if err := certgen.WriteCertAndKey(caCertPath, caKeyPath, caPEM, caKeyPEM); err != nil {
			return err
		}
	}
	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if err != nil {
		return err
	}

	// 2. Generate the server certificate and key signed by the CA.
	var hostList []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hostList = append(hostList, h)
		}
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(hostList, caCert, caKey, *validity)
	if err != nil {
		return err
	}
	if err := certgen.WriteCertAndKey(filepath.Join(*dir, "server.crt"), filepath.Join(*dir, "server.key"), certPEM, keyPEM); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Certificates generated into %s\n", *dir)
	return nil
}
