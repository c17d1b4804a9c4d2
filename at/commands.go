package at

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Names of the external analyzers payloads are handed to.
const (
	AnalyzerSMS = "gsm_sms"
	AnalyzerSIM = "gsm_sim"
)

// Names of the built-in continuation handlers.
const (
	ContinuationSMSPDU  = "sms_pdu"
	ContinuationSMSText = "sms_text"
)

// maxIndicators is the number of +CIND indicator slots.
const maxIndicators = 20

// textMode is the Scratch value of SMS commands seen in text mode.
const textMode = 1

var (
	dteSimple       = Types(TypeActionSimple, TypeTest)
	dteSetReadTest  = Types(TypeAction, TypeRead, TypeTest)
	dteSetTest      = Types(TypeAction, TypeTest)
	dceResponse     = Types(TypeResponse)
	dceResultCode   = Types(TypeResponseAck, TypeActionSimple)
	dteBasic        = Types(TypeAction, TypeActionSimple)
	dteSimpleOnly   = Types(TypeActionSimple)
	noTypes         TypeSet
	dceResponseOnly = Allow(noTypes, dceResponse)
)

// DefaultRegistry returns the built-in command table.
//
// Lookup is first match in this order. Result codes come before the basic
// commands sharing their first letter ("ERROR" before "E", "OK" before
// "O") so they are not taken for them.
func DefaultRegistry() *Registry {
	return NewRegistry(builtinCommands(), map[string]ContinuationFunc{
		ContinuationSMSPDU:  smsPDU,
		ContinuationSMSText: smsText,
	})
}

func builtinCommands() []Descriptor {
	return []Descriptor{
		{Name: "", LongName: "Attention", Check: Allow(dteSimpleOnly, noTypes)},

		// Extended commands
		{Name: "+CBC", LongName: "Battery Charge", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(
				param{"bcs", number(0, 3)},
				param{"bcl", number(0, 100)},
			))},
		{Name: "+CDSI", LongName: "SMS Status Report Indication", Check: dceResponseOnly,
			Param: byType(nil, fields(
				param{"mem", str},
				param{"index", number(0, 65535)},
			))},
		{Name: "+CGDCONT", LongName: "PDP Context Definition", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(cgdcont, cgdcontResponse)},
		{Name: "+CGMI", LongName: "Request Manufacturer Identification", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(param{"manufacturer", text}))},
		{Name: "+CGMM", LongName: "Request Model Identification", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(param{"model", text}))},
		{Name: "+CGMR", LongName: "Request Revision Identification", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(param{"revision", text}))},
		{Name: "+CGSN", LongName: "Request Product Serial Number Identification", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(param{"serial number", text}))},
		{Name: "+CHLD", LongName: "Call Hold and Multiparty", Check: Allow(dteSetTest, dceResponse),
			Param: byType(fields(param{"n", text}), text)},
		{Name: "+CHUP", LongName: "Hang Up Call", Check: Allow(dteSimple, noTypes)},
		{Name: "+CIEV", LongName: "Indicator Event Reporting", Check: dceResponseOnly,
			Param: byType(nil, ciev)},
		{Name: "+CIND", LongName: "Indicator Control", Check: Allow(Types(TypeRead, TypeTest), dceResponse),
			Param: byType(nil, cindResponse)},
		{Name: "+CLCC", LongName: "List Current Calls", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(
				param{"id", number(1, 7)},
				param{"dir", number(0, 1)},
				param{"stat", number(0, 5)},
				param{"mode", number(0, 9)},
				param{"mpty", number(0, 1)},
				param{"number", str},
				param{"type", number(128, 255)},
				param{"alpha", str},
			))},
		{Name: "+CLIP", LongName: "Calling Line Identification Presentation", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(fields(param{"n", number(0, 1)}), clipResponse)},
		{Name: "+CME ERROR", LongName: "Mobile Termination Error Result Code", Check: dceResponseOnly,
			Param: byType(nil, fields(param{"error", errorCode(0, 65535)}))},
		{Name: "+CMEE", LongName: "Mobile Termination Error Reporting", Check: Allow(dteSetReadTest, dceResponse),
			Param: fields(param{"n", number(0, 2)})},
		{Name: "+CMER", LongName: "Mobile Termination Event Reporting", Check: Allow(dteSetReadTest, dceResponse),
			Param: fields(
				param{"mode", number(0, 3)},
				param{"keyp", number(0, 2)},
				param{"disp", number(0, 2)},
				param{"ind", number(0, 2)},
				param{"bfr", number(0, 1)},
			)},
		{Name: "+CMGF", LongName: "Message Format", Check: Allow(dteSetReadTest, dceResponse),
			Param: fields(param{"mode", number(0, 1)})},
		{Name: "+CMGL", LongName: "List Messages", Check: Allow(dteSetTest, dceResponse),
			Param: byType(fields(param{"stat", smsStat}), cmglResponse)},
		{Name: "+CMGR", LongName: "Read Message", Check: Allow(dteSetTest, dceResponse),
			Param: byType(fields(param{"index", number(0, 65535)}), cmgrResponse)},
		{Name: "+CMGS", LongName: "Send Message", Check: Allow(dteSetTest, dceResponse),
			Param: byType(smsWrite, fields(
				param{"mr", number(0, 255)},
				param{"scts", text},
			))},
		{Name: "+CMGW", LongName: "Write Message to Memory", Check: Allow(dteSetTest, dceResponse),
			Param: byType(smsWrite, fields(param{"index", number(0, 65535)}))},
		{Name: "+CMS ERROR", LongName: "Message Service Failure Result Code", Check: dceResponseOnly,
			Param: byType(nil, fields(param{"error", errorCode(0, 511)}))},
		{Name: "+CMTI", LongName: "New Message Indication", Check: dceResponseOnly,
			Param: byType(nil, fields(
				param{"mem", str},
				param{"index", number(0, 65535)},
			))},
		{Name: "+CNMI", LongName: "New Message Indications to TE", Check: Allow(dteSetReadTest, dceResponse),
			Param: fields(
				param{"mode", number(0, 3)},
				param{"mt", number(0, 3)},
				param{"bm", number(0, 3)},
				param{"ds", number(0, 2)},
				param{"bfr", number(0, 1)},
			)},
		{Name: "+COPS", LongName: "PLMN Selection", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(copsFields, copsResponse)},
		{Name: "+CPIN", LongName: "Enter PIN", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(fields(
				param{"pin", str},
				param{"newpin", str},
			), fields(param{"code", oneOf("READY", "SIM PIN", "SIM PUK", "PH-SIM PIN", "SIM PIN2", "SIM PUK2", "PH-NET PIN")}))},
		{Name: "+CPMS", LongName: "Preferred Message Storage", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(fields(
				param{"mem1", str},
				param{"mem2", str},
				param{"mem3", str},
			), cpmsResponse)},
		{Name: "+CREG", LongName: "Network Registration", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(fields(param{"n", number(0, 2)}), cregResponse)},
		{Name: "+CRSM", LongName: "Restricted SIM Access", Check: Allow(dteSetTest, dceResponse),
			Param: byType(fields(
				param{"command", oneOfNumbers(176, 178, 192, 214, 220, 242)},
				param{"fileid", number(0, 65535)},
				param{"p1", number(0, 255)},
				param{"p2", number(0, 255)},
				param{"p3", number(0, 255)},
				param{"data", hexString},
				param{"pathid", hexString},
			), fields(
				param{"sw1", number(0, 255)},
				param{"sw2", number(0, 255)},
				param{"response", hexString},
			))},
		{Name: "+CSCS", LongName: "Select TE Character Set", Check: Allow(dteSetReadTest, dceResponse),
			Param: fields(param{"chset", str})},
		{Name: "+CSIM", LongName: "Generic SIM Access", Check: Allow(dteSetTest, dceResponse),
			Param: csim},
		{Name: "+CSQ", LongName: "Signal Quality", Check: Allow(dteSimple, dceResponse),
			Param: byType(nil, fields(
				param{"rssi", number(0, 31, 99)},
				param{"ber", number(0, 7, 99)},
			))},
		{Name: "+CUSD", LongName: "Unstructured Supplementary Service Data", Check: Allow(dteSetReadTest, dceResponse),
			Param: byType(fields(
				param{"n", number(0, 2)},
				param{"str", str},
				param{"dcs", number(0, 255)},
			), fields(
				param{"m", number(0, 5)},
				param{"str", str},
				param{"dcs", number(0, 255)},
			))},
		{Name: "+VTS", LongName: "DTMF and Tone Generation", Check: Allow(dteSetTest, noTypes),
			Param: byType(fields(param{"dtmf", text}, param{"duration", number(0, 255)}), nil)},

		// Result codes
		{Name: ">", LongName: "Message Input Prompt", Check: Allow(noTypes, Types(TypeResponse, TypeResponseAck))},
		{Name: Busy, LongName: "Busy", Check: Allow(noTypes, dceResultCode)},
		{Name: Connect, LongName: "Connect", Check: Allow(noTypes, dceResultCode|dceResponse),
			Param: byType(nil, fields(param{"rate", text}))},
		{Name: ERROR, LongName: "Error", Check: Allow(noTypes, dceResultCode)},
		{Name: NoAnswer, LongName: "No Answer", Check: Allow(noTypes, dceResultCode)},
		{Name: NoCarrier, LongName: "No Carrier", Check: Allow(noTypes, dceResultCode)},
		{Name: NoDialtone, LongName: "No Dialtone", Check: Allow(noTypes, dceResultCode)},
		{Name: OK, LongName: "OK", Check: Allow(noTypes, dceResultCode)},
		{Name: UrcCall, LongName: "Incoming Call", Check: Allow(noTypes, dceResultCode)},

		// Basic commands
		{Name: "&C", LongName: "DCD Control", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"mode", number(0, 1)})},
		{Name: "&D", LongName: "DTR Control", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"mode", number(0, 2)})},
		{Name: "&F", LongName: "Factory Defined Configuration", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"profile", number(0, 0)})},
		{Name: "&W", LongName: "Store Active Profile", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"profile", number(0, 1)})},
		{Name: "A", LongName: "Answer", Check: Allow(dteSimpleOnly, noTypes)},
		{Name: "D", LongName: "Dial", Check: Allow(Types(TypeAction), noTypes),
			Param: fields(param{"number", text})},
		{Name: "E", LongName: "Command Echo", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"echo", number(0, 1)})},
		{Name: "H", LongName: "Hook Control", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 0)})},
		{Name: "I", LongName: "Request Identification Information", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 9)})},
		{Name: "O", LongName: "Return to Online Data State", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 0)})},
		{Name: "Q", LongName: "Result Code Suppression", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 1)})},
		{Name: "S", LongName: "S-Register", Check: Allow(dteBasic|Types(TypeRead), noTypes),
			Param: fields(param{"register", text})},
		{Name: "V", LongName: "Result Code Format", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 1)})},
		{Name: "X", LongName: "Result Code Selection", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"value", number(0, 4)})},
		{Name: "Z", LongName: "Reset to Default Configuration", Check: Allow(dteBasic, noTypes),
			Param: fields(param{"profile", number(0, 255)})},
	}
}

// errorCode accepts a numeric error in range or, in verbose mode, text.
func errorCode(lo, hi int) check {
	numeric := number(lo, hi)
	return func(c *Call, tok Token) bool {
		if _, ok := integer(tok); ok {
			return numeric(c, tok)
		}
		return true
	}
}

// smsStat accepts a PDU mode status number or a text mode status string.
func smsStat(c *Call, tok Token) bool {
	if quoted(tok) {
		return oneOf("REC UNREAD", "REC READ", "STO UNSENT", "STO SENT", "ALL")(c, tok)
	}
	return number(0, 4)(c, tok)
}

func ciev(c *Call, tok Token) bool {
	switch tok.Index {
	case 0:
		c.Label("indicator")
		v, ok := integer(tok)
		if !ok {
			return false
		}
		if v < 1 || v > maxIndicators {
			c.Advise(KindMalformedPayload, "indicator index %d out of range (1-%d)", v, maxIndicators)
			return true
		}
		c.Scratch = v
		return true
	case 1:
		if c.Scratch == 0 {
			c.Label("value")
		} else {
			c.Label(fmt.Sprintf("indicator %d value", c.Scratch))
		}
		_, ok := integer(tok)
		return ok
	}
	return false
}

func cindResponse(c *Call, tok Token) bool {
	if peerIs(c, "+CIND", TypeTest) {
		c.Label("indicator description")
		return true
	}
	if tok.Index >= maxIndicators {
		return false
	}
	c.Label(fmt.Sprintf("indicator %d", tok.Index+1))
	_, ok := integer(tok)
	return ok || empty(tok)
}

func clipResponse(c *Call, tok Token) bool {
	if peerIs(c, "+CLIP", TypeRead) {
		return fields(
			param{"n", number(0, 1)},
			param{"m", number(0, 2)},
		)(c, tok)
	}
	return fields(
		param{"number", str},
		param{"type", number(128, 255)},
		param{"subaddr", str},
		param{"satype", number(0, 255)},
		param{"alpha", str},
		param{"cli validity", number(0, 2)},
	)(c, tok)
}

var (
	copsFields = fields(
		param{"mode", number(0, 4)},
		param{"format", number(0, 2)},
		param{"oper", str},
		param{"act", number(0, 9)},
	)
	cgdcont = fields(
		param{"cid", number(1, 255)},
		param{"pdp type", str},
		param{"apn", str},
		param{"pdp addr", str},
		param{"d comp", number(0, 3)},
		param{"h comp", number(0, 4)},
	)
)

func copsResponse(c *Call, tok Token) bool {
	if peerIs(c, "+COPS", TypeTest) {
		c.Label("operator")
		return true
	}
	return copsFields(c, tok)
}

func cgdcontResponse(c *Call, tok Token) bool {
	if peerIs(c, "+CGDCONT", TypeTest) {
		c.Label("supported values")
		return true
	}
	return cgdcont(c, tok)
}

func cpmsResponse(c *Call, tok Token) bool {
	if peerIs(c, "+CPMS", TypeAction) {
		return fields(
			param{"used1", number(0, 65535)},
			param{"total1", number(0, 65535)},
			param{"used2", number(0, 65535)},
			param{"total2", number(0, 65535)},
			param{"used3", number(0, 65535)},
			param{"total3", number(0, 65535)},
		)(c, tok)
	}
	if peerIs(c, "+CPMS", TypeTest) {
		c.Label("supported storages")
		return true
	}
	return fields(
		param{"mem1", str},
		param{"used1", number(0, 65535)},
		param{"total1", number(0, 65535)},
		param{"mem2", str},
		param{"used2", number(0, 65535)},
		param{"total2", number(0, 65535)},
		param{"mem3", str},
		param{"used3", number(0, 65535)},
		param{"total3", number(0, 65535)},
	)(c, tok)
}

// cregResponse tells the answer to "AT+CREG?", which starts with <n>, from
// the unsolicited registration report, which does not.
func cregResponse(c *Call, tok Token) bool {
	unsolicited := fields(
		param{"stat", number(0, 5)},
		param{"lac", str},
		param{"ci", str},
		param{"act", number(0, 9)},
	)
	if !peerIs(c, "+CREG", TypeRead) {
		return unsolicited(c, tok)
	}
	if tok.Index == 0 {
		c.Label("n")
		return number(0, 2)(c, tok)
	}
	tok.Index--
	return unsolicited(c, tok)
}

// cmgrResponse reads "+CMGR: <stat>,[<alpha>],<length>" followed by the PDU
// line, or the text mode header followed by the message text.
func cmgrResponse(c *Call, tok Token) bool {
	if tok.Index == 0 {
		c.Label("stat")
		if quoted(tok) {
			c.Scratch = textMode
			c.Expect(ContinuationSMSText)
			return smsStat(c, tok)
		}
		return number(0, 3)(c, tok)
	}
	if c.Scratch == textMode {
		return fields(
			param{"stat", nil},
			param{"oa", str},
			param{"alpha", str},
			param{"scts", str},
			param{"tooa", number(128, 255)},
			param{"fo", number(0, 255)},
			param{"pid", number(0, 255)},
			param{"dcs", number(0, 255)},
			param{"sca", str},
			param{"tosca", number(128, 255)},
			param{"length", number(0, 255)},
		)(c, tok)
	}
	switch tok.Index {
	case 1:
		c.Label("alpha")
		return str(c, tok)
	case 2:
		c.Label("length")
		n, ok := integer(tok)
		if !ok {
			return false
		}
		c.ExpectLength(ContinuationSMSPDU, n)
		return number(0, 255)(c, tok)
	}
	return false
}

// cmglResponse reads one "+CMGL: <index>,<stat>,[<alpha>],<length>" entry
// followed by its PDU line, or the text mode entry followed by its text.
func cmglResponse(c *Call, tok Token) bool {
	switch tok.Index {
	case 0:
		c.Label("index")
		return number(0, 65535)(c, tok)
	case 1:
		c.Label("stat")
		if quoted(tok) {
			c.Scratch = textMode
			c.Expect(ContinuationSMSText)
		}
		return smsStat(c, tok)
	}
	if c.Scratch == textMode {
		return fields(
			param{"index", nil},
			param{"stat", nil},
			param{"oa", str},
			param{"alpha", str},
			param{"scts", str},
			param{"tooa", number(128, 255)},
			param{"length", number(0, 255)},
		)(c, tok)
	}
	switch tok.Index {
	case 2:
		c.Label("alpha")
		return str(c, tok)
	case 3:
		c.Label("length")
		n, ok := integer(tok)
		if !ok {
			return false
		}
		c.ExpectLength(ContinuationSMSPDU, n)
		return number(0, 255)(c, tok)
	}
	return false
}

// smsWrite reads "AT+CMGS=<length>" (PDU mode) or "AT+CMGS=<da>[,<toda>]"
// (text mode). The message itself follows after the DCE prompt.
func smsWrite(c *Call, tok Token) bool {
	switch tok.Index {
	case 0:
		if quoted(tok) {
			c.Label("da")
			c.Scratch = textMode
			c.Expect(ContinuationSMSText)
			return true
		}
		c.Label("length")
		n, ok := integer(tok)
		if !ok {
			return false
		}
		c.ExpectLength(ContinuationSMSPDU, n)
		return number(1, 255)(c, tok)
	case 1:
		if c.Scratch == textMode {
			c.Label("toda")
			return number(128, 255)(c, tok)
		}
		c.Label("stat")
		return number(0, 3)(c, tok)
	}
	return false
}

// csim reads "<length>,<command>" from the DTE and "<length>,<response>"
// from the DCE; the APDU goes to the SIM analyzer.
func csim(c *Call, tok Token) bool {
	switch tok.Index {
	case 0:
		c.Label("length")
		v, ok := integer(tok)
		if !ok {
			return false
		}
		c.Scratch = v
		return true
	case 1:
		if c.Role == DTE {
			c.Label("command")
		} else {
			c.Label("response")
		}
		s := unquote(tok)
		if s == "" {
			c.Advise(KindMalformedPayload, "empty APDU")
			return true
		}
		apdu, ok := decodeHex(c, s)
		if !ok {
			return true
		}
		if len(s) != c.Scratch {
			c.Advise(KindMalformedPayload, "length %d does not match %d hex digits", c.Scratch, len(s))
		}
		c.Handoff(AnalyzerSIM, apdu)
		return true
	}
	return false
}

// smsPDU decodes the hex PDU line following a PDU mode SMS command and
// hands the TPDU to the SMS analyzer. The declared length counts TPDU
// octets only, so a longer line carries the SMSC information (a length
// octet and the address) first.
func smsPDU(d *Data, line []byte) {
	d.Label("PDU")
	body := bytes.TrimRight(line, CtrlZ+Esc+" \t\n")
	if len(body) == 0 {
		d.Advise(KindMalformedPayload, "empty PDU")
		return
	}
	if len(body)%2 != 0 {
		d.Advise(KindMalformedPayload, "malformed length: odd number of hex digits (%d)", len(body))
		return
	}
	raw := make([]byte, hex.DecodedLen(len(body)))
	if _, err := hex.Decode(raw, body); err != nil {
		d.Advise(KindMalformedPayload, "invalid hex string: %v", err)
		return
	}

	tpdu := raw
	// A body longer than the declared TPDU starts with the SMSC address.
	if d.Length == 0 || len(raw) > d.Length {
		smsc := int(raw[0])
		switch {
		case 1+smsc > len(raw):
			d.Advise(KindMalformedPayload, "SMSC length %d exceeds PDU of %d octets", smsc, len(raw))
			return
		case 1+smsc == len(raw):
			d.Advise(KindMalformedPayload, "no TPDU after SMSC information")
			return
		}
		tpdu = raw[1+smsc:]
	}
	if d.Length != 0 && len(tpdu) != d.Length {
		d.Advise(KindMalformedPayload, "declared length %d does not match TPDU of %d octets", d.Length, len(tpdu))
	}
	d.Handoff(AnalyzerSMS, tpdu)
}

// smsText takes the text mode message body, up to the Ctrl-Z on the DTE side.
func smsText(d *Data, line []byte) {
	d.Label("message text")
	if i := bytes.IndexAny(line, CtrlZ+Esc); i >= 0 && line[i] == Esc[0] {
		d.Advise(KindMalformedPayload, "message input cancelled")
	}
}
