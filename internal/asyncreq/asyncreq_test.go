package asyncreq

import "testing"

func newReq(url string) *Request {
	id := Fingerprint(1, EthRPC, MethodPost, url, nil)
	return &Request{ID: id, ChainID: 1, Transport: EthRPC, Method: MethodPost, URL: url}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(1, EthRPC, MethodPost, "eth_getBalance", []byte("p"))
	b := Fingerprint(1, EthRPC, MethodPost, "eth_getBalance", []byte("p"))
	if a != b {
		t.Fatalf("fingerprint not deterministic")
	}
	c := Fingerprint(1, EthRPC, MethodPost, "eth_getBalance", []byte("q"))
	if a == c {
		t.Fatalf("different payloads fingerprinted identically")
	}
}

func TestSendAtMostOneInFlight(t *testing.T) {
	table := NewTable()
	req := newReq("/eth/v1/beacon/headers/head")

	status, r1 := table.Send(req)
	if status != Pending {
		t.Fatalf("first Send() = %v, want Pending", status)
	}

	status2, r2 := table.Send(req)
	if status2 != Pending {
		t.Fatalf("duplicate Send() = %v, want Pending", status2)
	}
	if r1.ID != r2.ID {
		t.Fatalf("duplicate fingerprint should attach to the same request")
	}

	pending := table.Pending()
	if len(pending) != 1 {
		t.Fatalf("Pending() = %d entries, want exactly 1 (at-most-one-in-flight)", len(pending))
	}
}

func TestFulfilThenSendReturnsDone(t *testing.T) {
	table := NewTable()
	req := newReq("/eth/v1/beacon/headers/head")
	table.Send(req)

	if err := table.Fulfil(req.ID, []byte(`{"ok":true}`), 3); err != nil {
		t.Fatalf("Fulfil: %v", err)
	}

	status, resolved := table.Send(req)
	if status != Done {
		t.Fatalf("Send() after Fulfil = %v, want Done", status)
	}
	resp, ok := table.Response(resolved.ID)
	if !ok {
		t.Fatalf("Response() missing after Fulfil")
	}
	if string(resp) != `{"ok":true}` {
		t.Fatalf("Response() = %s", resp)
	}
	if len(table.Pending()) != 0 {
		t.Fatalf("resolved request should not appear in Pending()")
	}
}

func TestFailTerminal(t *testing.T) {
	table := NewTable()
	req := newReq("/eth/v1/beacon/headers/head")
	table.Send(req)

	if _, err := table.Fail(req.ID, "connection reset", 0, false); err == nil {
		t.Fatalf("Fail() should return the terminal error")
	}
	msg, ok := table.Err(req.ID)
	if !ok || msg != "connection reset" {
		t.Fatalf("Err() = %q, %v", msg, ok)
	}
}

func TestFailRetryableReEntersPending(t *testing.T) {
	table := NewTable()
	req := newReq("/eth/v1/beacon/headers/head")
	table.Send(req)

	retried, err := table.Fail(req.ID, "-32602", 2, true)
	if err != nil {
		t.Fatalf("Fail(retryable): %v", err)
	}
	if retried.ExcludeMask&(1<<2) == 0 {
		t.Fatalf("retried request should exclude node 2")
	}

	status, _ := table.Send(retried)
	if status != Pending {
		t.Fatalf("re-sent retryable request should be Pending again")
	}
}

func TestDoubleFulfilIsError(t *testing.T) {
	table := NewTable()
	req := newReq("/eth/v1/beacon/headers/head")
	table.Send(req)
	table.Fulfil(req.ID, []byte("ok"), 1)
	if err := table.Fulfil(req.ID, []byte("ok again"), 1); err != ErrAlreadyResolved {
		t.Fatalf("double Fulfil: got %v, want ErrAlreadyResolved", err)
	}
}
