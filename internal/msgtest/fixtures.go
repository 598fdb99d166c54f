package msgtest

import "time"

// Property ids used by the fixtures.
const (
	PropMessageClass            = 0x001A
	PropSubject                 = 0x0037
	PropClientSubmitTime        = 0x0039
	PropTransportMessageHeaders = 0x007D
	PropSenderName              = 0x0C1A
	PropRecipientType           = 0x0C15
	PropDisplayTo               = 0x0E04
	PropAttachSize              = 0x0E20
	PropBody                    = 0x1000
	PropRTFCompressed           = 0x1009
	PropBodyHTML                = 0x1013
	PropDisplayName             = 0x3001
	PropEmailAddress            = 0x3003
	PropSMTPAddress             = 0x39FE
	PropAttachData              = 0x3701
	PropAttachExtension         = 0x3703
	PropAttachFilename          = 0x3704
	PropAttachMethod            = 0x3705
	PropAttachLongFilename      = 0x3707
	PropAttachMIMETag           = 0x370E
	PropInternetCPID            = 0x3FDE
	PropSenderSMTPAddress       = 0x5D01
)

// FakeEmailBody is the body text of FakeEmail.
const FakeEmailBody = "This is a test email to use for unit tests.\r\n\r\nImportant points:\r\n\r\n-  Roses are red\r\n-  Violets are blue\r\n"

// AttachmentPayload is the content of the attachment of FakeEmailAttachment.
const AttachmentPayload = "Hey this is a fake attachment!"

// RootModified is the compound file root time of the fixtures.
var RootModified = time.Date(2023, 1, 3, 10, 0, 0, 0, time.UTC)

// FakeEmail is a plain message with a title, a paragraph and a list.
func FakeEmail() *Message {
	return &Message{
		Props: []Prop{
			String(PropMessageClass, "IPM.Note"),
			String(PropSubject, "Test Email"),
			String(PropBody, FakeEmailBody),
			String(PropSenderName, "Matthew Robinson"),
			String(PropSenderSMTPAddress, "mrobinson@unstructured.io"),
			String(PropDisplayTo, "Matthew Robinson"),
			Time(PropClientSubmitTime, time.Date(2022, 12, 16, 22, 4, 16, 0, time.UTC)),
			String(PropTransportMessageHeaders, "From: Matthew Robinson <mrobinson@unstructured.io>\r\n"+
				"Subject: Test Email\r\n"+
				"Date: Fri, 16 Dec 2022 17:04:16 -0500\r\n"+
				"MIME-Version: 1.0\r\n"+
				"Content-Type: multipart/alternative; boundary=\"00000000000095c9b205eff92630\"\r\n"),
		},
		Recipients: [][]Prop{{
			String(PropDisplayName, "Matthew Robinson"),
			Long(PropRecipientType, 1),
		}},
		Modified: RootModified,
	}
}

// FakeEmailAttachment carries one text attachment without PR_ATTACH_SIZE.
func FakeEmailAttachment() *Message {
	return &Message{
		Props: []Prop{
			String(PropMessageClass, "IPM.Note"),
			String(PropSubject, "Fake email with attachment"),
			String(PropBody, "Hello!\r\n\r\nHere's the attachments!\r\n\r\nIt includes:\r\n\r\n"+
				"    - Lots of whitespace\r\n    - Little to no content\r\n    - and is a quick read\r\n\r\nBest,\r\n\r\n-Mallori\r\n"),
			String(PropSenderName, "Mallori Harrell"),
			String(PropSenderSMTPAddress, "mallori@unstructured.io"),
			String(PropTransportMessageHeaders, "From: Mallori Harrell <mallori@unstructured.io>\r\n"+
				"To: Mallori Harrell <mallori@unstructured.io>\r\n"+
				"Subject: Fake email with attachment\r\n"+
				"Date: Wed, 22 Feb 2023 14:51:41 -0600\r\n"),
		},
		Recipients: [][]Prop{{
			String(PropDisplayName, "Mallori Harrell"),
			String(PropSMTPAddress, "mallori@unstructured.io"),
			Long(PropRecipientType, 1),
		}},
		Attachments: []Attachment{{Props: []Prop{
			String(PropAttachLongFilename, "fake-attachment.txt"),
			String(PropAttachFilename, "fake-a~1.txt"),
			String(PropAttachExtension, ".txt"),
			String(PropAttachMIMETag, "text/plain"),
			Long(PropAttachMethod, 1),
			Binary(PropAttachData, []byte(AttachmentPayload)),
		}}},
		Modified: RootModified,
	}
}

// FakeEncrypted is an S/MIME enveloped message.
func FakeEncrypted() *Message {
	return &Message{
		Props: []Prop{
			String(PropMessageClass, "IPM.Note.SMIME"),
			String(PropSubject, "Encrypted"),
			String(PropTransportMessageHeaders, "Subject: Encrypted\r\n"+
				"Content-Type: application/pkcs7-mime; smime-type=enveloped-data; name=smime.p7m\r\n"),
		},
		Attachments: []Attachment{{Props: []Prop{
			String(PropAttachLongFilename, "smime.p7m"),
			String(PropAttachMIMETag, "application/pkcs7-mime"),
			Binary(PropAttachData, []byte{0x30, 0x80, 0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x07, 0x03}),
		}}},
		Modified: RootModified,
	}
}
