package msg

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/emersion/go-message"
	"go.mozilla.org/pkcs7"

	"github.com/dhcgn/msg-partition/mimebody"
)

const (
	classSMIME       = "ipm.note.smime"
	classSMIMESigned = "ipm.note.smime.multipartsigned"
	smimeAttachment  = "smime.p7m"
	pgpArmor         = "-----BEGIN PGP MESSAGE-----"
)

// encryptedContentType reports whether a Content-Type value announces an
// encrypted body.
func encryptedContentType(ct string) bool {
	if ct == "" {
		return false
	}
	var h message.Header
	h.Set("Content-Type", ct)
	mt, params, err := h.ContentType()
	if err != nil {
		return false
	}
	switch mt {
	case "multipart/encrypted", "application/pgp-encrypted":
		return true
	case "application/pkcs7-mime", "application/x-pkcs7-mime":
		switch strings.ToLower(params["smime-type"]) {
		case "enveloped-data", "authenveloped-data":
			return true
		}
	}
	return false
}

// classifySMIME inspects the smime.p7m attachment of an S/MIME message. It
// returns the signed content for opaque-signed data, or encrypted=true when
// the payload is not SignedData.
func classifySMIME(m *Message) (signed []byte, encrypted bool) {
	if !strings.EqualFold(m.Class, classSMIME) && !strings.HasPrefix(strings.ToLower(m.Class), classSMIME+".") {
		return nil, false
	}
	if strings.EqualFold(m.Class, classSMIMESigned) {
		return nil, false
	}
	for _, a := range m.Attachments {
		if !strings.EqualFold(a.Name, smimeAttachment) && !strings.Contains(strings.ToLower(a.MIMEType), "pkcs7-mime") {
			continue
		}
		p7, err := pkcs7.Parse(decodeBase64IfNeeded(a.Payload))
		if err != nil {
			return nil, true
		}
		if p7.Content == nil && len(p7.Signers) == 0 {
			return nil, true
		}
		return p7.Content, false
	}
	return nil, false
}

// decodeBase64IfNeeded returns the DER form of a payload that may be stored
// base64 encoded.
func decodeBase64IfNeeded(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == 0x30 {
		return data
	}
	dec, err := base64.StdEncoding.DecodeString(string(bytes.Join(bytes.Fields(trimmed), nil)))
	if err != nil {
		return data
	}
	return dec
}

// signedBody returns the text body of MIME content carried in SignedData.
func signedBody(content []byte) string {
	body, err := mimebody.Read(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	text, err := body.PlainText()
	if err != nil {
		return ""
	}
	return text
}

func isPGPArmored(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), pgpArmor)
}
