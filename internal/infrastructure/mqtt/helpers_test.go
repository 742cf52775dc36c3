package mqtt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"testing"
	"time"
)

// testPKI holds PEM material for a CA and a device certificate it signed.
type testPKI struct {
	CA   []byte
	Cert []byte
	Key  []byte
}

func newTestPKI(t *testing.T) testPKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating CA key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("creating CA: %v", err)
	}

	devKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating device key: %v", err)
	}
	devTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "node-A"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	devDER, err := x509.CreateCertificate(rand.Reader, devTmpl, caTmpl, &devKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("creating device certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(devKey)
	if err != nil {
		t.Fatalf("marshalling device key: %v", err)
	}

	return testPKI{
		CA:   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		Cert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: devDER}),
		Key:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}
}

// readPacket consumes one MQTT control packet and returns its type nibble.
func readPacket(r io.Reader) (byte, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}

	var length, multiplier int = 0, 1
	for {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		length += int(b[0]&0x7f) * multiplier
		if b[0]&0x80 == 0 {
			break
		}
		multiplier *= 128
	}

	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return 0, err
	}
	return first[0] >> 4, nil
}

const (
	packetConnect    = 1
	packetPublish    = 3
	packetDisconnect = 14
)

// fakeBroker answers CONNECT on one end of a pipe with a fixed CONNACK
// and records the packet types it receives afterwards.
type fakeBroker struct {
	conn     net.Conn
	received chan byte
}

func startFakeBroker(t *testing.T, conn net.Conn, connack []byte) *fakeBroker {
	t.Helper()
	b := &fakeBroker{conn: conn, received: make(chan byte, 16)}

	go func() {
		typ, err := readPacket(conn)
		if err != nil || typ != packetConnect {
			return
		}
		if _, err := conn.Write(connack); err != nil {
			return
		}
		for {
			typ, err := readPacket(conn)
			if err != nil {
				close(b.received)
				return
			}
			b.received <- typ
		}
	}()

	t.Cleanup(func() { _ = conn.Close() })
	return b
}

// expect waits for a packet of type want.
func (b *fakeBroker) expect(t *testing.T, want byte) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case typ, ok := <-b.received:
			if !ok {
				t.Fatalf("broker connection closed before packet type %d", want)
			}
			if typ == want {
				return
			}
		case <-timeout:
			t.Fatalf("broker did not receive packet type %d", want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
