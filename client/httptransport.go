package client

import (
	"bytes"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/pairbridge/pairbridge/pkg/handler"
	"github.com/pairbridge/pairbridge/responses"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errAbsent signals a 204 reply: the requested record does not exist, which
// for the relay is a valid terminal outcome.
var errAbsent = errors.New("record absent")

type httpTransport struct {
	client   *http.Client
	endpoint string
}

// newHTTPTransport will create a new http transport for the given relay endpoint and client.
// Caution: the provided endpoint url is not validated!
func newHTTPTransport(endpoint string, client *http.Client) transport {
	return &httpTransport{
		endpoint: endpoint,
		client:   client,
	}
}

func (ht *httpTransport) shutdown() {
	// nothing to do here
}

func (ht *httpTransport) call(route handler.Route, request interface{}, response interface{}) error {
	requestBytes, errMarshal := json.Marshal(request)
	if errMarshal != nil {
		return errMarshal
	}
	req, errNewRequest := http.NewRequest(
		http.MethodPost,
		ht.endpoint+"/"+string(route),
		bytes.NewBuffer(requestBytes),
	)
	if errNewRequest != nil {
		return errNewRequest
	}
	req.Header.Set("Content-Type", "application/json")

	httpResponse, errDo := ht.client.Do(req)
	if errDo != nil {
		return errDo
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode == http.StatusNoContent {
		return errAbsent
	}

	responseBytes, errRead := io.ReadAll(httpResponse.Body)
	if errRead != nil {
		return errRead
	}

	if httpResponse.StatusCode != http.StatusOK {
		errReply := &responses.Error{}
		if err := json.Unmarshal(responseBytes, errReply); err != nil {
			return errors.Errorf("unexpected reply status %q", httpResponse.Status)
		}
		return errReply
	}

	envelope := struct {
		Reply jsoniter.RawMessage `json:"reply"`
	}{}
	if err := json.Unmarshal(responseBytes, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Reply, response)
}
