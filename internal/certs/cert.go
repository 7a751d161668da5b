// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package certs locates or generates the TLS key pair the server listens with.
package certs

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 10 * 365 * 24 * time.Hour

// Config selects the key pair. TLS is off when CertFile is empty.
type Config struct {
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	// SelfSigned generates a missing pair instead of failing.
	SelfSigned bool `yaml:"selfSigned"`
	// Hosts are extra DNS names or IPs for generated certificates.
	Hosts []string `yaml:"hosts"`
}

// Enabled reports whether the server should listen with TLS.
func (c Config) Enabled() bool {
	return c.CertFile != ""
}

// Ensure checks that the key pair exists, generating a self-signed one when
// allowed. An incomplete pair is regenerated.
func Ensure(cfg Config, logger zerolog.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.KeyFile == "" {
		return fmt.Errorf("tls: key file required with cert file")
	}

	certExists, keyExists := fileExists(cfg.CertFile), fileExists(cfg.KeyFile)
	if certExists && keyExists {
		logger.Debug().Str("cert", cfg.CertFile).Str("key", cfg.KeyFile).Msg("TLS certificates found")
		return nil
	}
	if !cfg.SelfSigned {
		return fmt.Errorf("tls: certificate pair not found (cert %t, key %t)", certExists, keyExists)
	}
	if certExists || keyExists {
		logger.Warn().
			Bool("cert_exists", certExists).
			Bool("key_exists", keyExists).
			Msg("incomplete TLS certificate pair found, regenerating both")
	}

	if err := GenerateSelfSigned(cfg.CertFile, cfg.KeyFile, DefaultValidity, cfg.Hosts...); err != nil {
		return fmt.Errorf("generate self-signed certificate: %w", err)
	}
	logger.Info().
		Str("cert", cfg.CertFile).
		Str("key", cfg.KeyFile).
		Strs("hosts", cfg.Hosts).
		Msg("self-signed TLS certificate generated")
	return nil
}

// GenerateSelfSigned writes an ECDSA P-256 certificate valid for localhost and
// hosts. Both files are replaced atomically.
func GenerateSelfSigned(certPath, keyPath string, validity time.Duration, hosts ...string) error {
	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create cert directory: %w", err)
		}
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}

	ips := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	dns := []string{"localhost"}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			if !slices.ContainsFunc(ips, ip.Equal) {
				ips = append(ips, ip)
			}
		} else if h != "" && !slices.Contains(dns, h) {
			dns = append(dns, h)
		}
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"fondat self-signed"}, CommonName: "fondat"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           ips,
		DNSNames:              dns,
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	if err := writePEM(keyPath, "EC PRIVATE KEY", privBytes, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	if err := writePEM(certPath, "CERTIFICATE", derBytes, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return err
	}
	return renameio.WriteFile(path, buf.Bytes(), perm)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
