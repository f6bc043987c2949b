// pinhash 是运维小工具：计算证书的 SPKI pin，或为管理员密码生成 bcrypt 哈希。
//
//	pinhash -pem cert.pem          # 从 PEM 文件计算 pin
//	pinhash -connect example.com   # 从在线端点抓取证书链计算 pin
//	pinhash -bcrypt                # 交互式生成 auth.admin_password_hash
package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/Wei-Shaw/fetchguard/internal/pkg/pinning"
)

func main() {
	pemPath := flag.String("pem", "", "compute pins from a PEM certificate file")
	connect := flag.String("connect", "", "compute pins from a live TLS endpoint (host or host:port)")
	bcryptMode := flag.Bool("bcrypt", false, "hash an admin password for auth.admin_password_hash")
	timeout := flag.Duration("timeout", 10*time.Second, "TLS connect timeout")
	flag.Parse()

	var err error
	switch {
	case *bcryptMode:
		err = runBcrypt()
	case *pemPath != "":
		err = runPEM(*pemPath)
	case *connect != "":
		err = runConnect(*connect, *timeout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("pinhash: %v", err)
	}
}

// humanOutput 在 stdout 是终端时输出带证书信息的可读格式，
// 重定向到文件或管道时只输出裸 pin，方便直接粘进 pins.yaml。
func humanOutput() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printChain(certs []*x509.Certificate) {
	human := humanOutput()
	for i, cert := range certs {
		pin := pinning.FingerprintCert(cert)
		if human {
			role := "intermediate"
			if i == 0 {
				role = "leaf"
			}
			fmt.Printf("%s  [%s] subject=%q expires=%s\n",
				pin, role, cert.Subject.String(), cert.NotAfter.Format("2006-01-02"))
			continue
		}
		fmt.Println(pin)
	}
}

func runPEM(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var certs []*x509.Certificate
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return fmt.Errorf("no certificates found in %s", path)
	}
	printChain(certs)
	return nil
}

func runConnect(addr string, timeout time.Duration) error {
	host := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "443")
	} else {
		host, _, _ = net.SplitHostPort(addr)
	}

	dialer := &net.Dialer{Timeout: timeout}
	// 只为拿证书链算指纹，不做链校验，跳过 verify 是安全的。
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         host,
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return fmt.Errorf("no peer certificates from %s", addr)
	}
	printChain(certs)
	return nil
}

func runBcrypt() error {
	var password []byte
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		p, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		password = p
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		password = []byte(strings.TrimRight(line, "\r\n"))
	}
	if len(password) == 0 {
		return fmt.Errorf("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
