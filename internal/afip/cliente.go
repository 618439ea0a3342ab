package afip

// cliente.go — submits a signed solicitud to WSFE and interprets the reply.
// The live client speaks the SOAP envelope over HTTP; transport and
// protocol failures surface as errors here and are mapped into a
// non-authorized ResultadoAutorizacion by the service layer, never as a
// fault to the API caller.

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Observacion is one coded remark attached by WSFE to a response.
type Observacion struct {
	Codigo  int    `xml:"Code"`
	Mensaje string `xml:"Msg"`
}

// RespuestaCAE is the interpreted WSFE reply for one comprobante.
type RespuestaCAE struct {
	Resultado      string // "A" (aprobado) | "R" (rechazado)
	CAE            string
	CAEVencimiento time.Time
	Observaciones  []Observacion
}

// Aprobada reports whether WSFE authorized the comprobante.
func (r *RespuestaCAE) Aprobada() bool { return r.Resultado == "A" }

// Autorizador submits signed requests for authorization.
// Implementations must honor ctx cancellation on the external call: an
// aborted submission leaves no partial authorization state on this side.
type Autorizador interface {
	Autorizar(ctx context.Context, sf *SolicitudFirmada) (*RespuestaCAE, error)
}

// ── ClienteWSFE ──────────────────────────────────────────────────────────────

// soap envelope of the FECAESolicitar operation (request side).
type sobreSolicitud struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	XmlnsAR string   `xml:"xmlns:ar,attr"`
	Body    struct {
		Solicitar struct {
			Auth struct {
				Token string `xml:"ar:Token"`
				Sign  string `xml:"ar:Sign"`
				Cuit  string `xml:"ar:Cuit"`
			} `xml:"ar:Auth"`
			Req *SolicitudCAE `xml:"ar:FeCAEReq"`
		} `xml:"ar:FECAESolicitar"`
	} `xml:"soapenv:Body"`
}

// soap envelope of the FECAESolicitar reply (response side, subset).
type sobreRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				Cabecera struct {
					Resultado string `xml:"Resultado"`
				} `xml:"FeCabResp"`
				Detalle struct {
					Comprobantes []struct {
						Resultado      string        `xml:"Resultado"`
						CAE            string        `xml:"CAE"`
						CAEVencimiento string        `xml:"CAEFchVto"`
						Observaciones  []Observacion `xml:"Observaciones>Obs"`
					} `xml:"FECAEDetResponse"`
				} `xml:"FeDetResp"`
				Errores []struct {
					Codigo  int    `xml:"Code"`
					Mensaje string `xml:"Msg"`
				} `xml:"Errors>Err"`
			} `xml:"FECAESolicitarResult"`
		} `xml:"FECAESolicitarResponse"`
	} `xml:"Body"`
}

// ClienteWSFE talks to the live WSFE endpoint. Calls go through a circuit
// breaker supplied by the caller so a flapping Authority fails fast.
type Breaker interface {
	Execute(fn func() error) error
}

type ClienteWSFE struct {
	endpoint   string
	httpClient *http.Client
	breaker    Breaker
}

// NewClienteWSFE builds the live client. breaker may be nil, in which case
// calls go straight through.
func NewClienteWSFE(endpoint string, breaker Breaker) *ClienteWSFE {
	return &ClienteWSFE{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
	}
}

// Autorizar performs the FECAESolicitar call. Any transport failure,
// non-200 status or malformed response is returned as an error; a
// well-formed rejection comes back as a RespuestaCAE with Resultado "R".
func (c *ClienteWSFE) Autorizar(ctx context.Context, sf *SolicitudFirmada) (*RespuestaCAE, error) {
	var respuesta *RespuestaCAE
	llamada := func() error {
		r, err := c.llamar(ctx, sf)
		if err != nil {
			return err
		}
		respuesta = r
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(llamada)
	} else {
		err = llamada()
	}
	if err != nil {
		return nil, err
	}
	return respuesta, nil
}

func (c *ClienteWSFE) llamar(ctx context.Context, sf *SolicitudFirmada) (*RespuestaCAE, error) {
	var sobre sobreSolicitud
	sobre.XmlnsS = "http://schemas.xmlsoap.org/soap/envelope/"
	sobre.XmlnsAR = "http://ar.gov.afip.dif.FEV1/"
	sobre.Body.Solicitar.Auth.Token = sf.Auth.Token
	sobre.Body.Solicitar.Auth.Sign = sf.Auth.Sign
	sobre.Body.Solicitar.Auth.Cuit = sf.CUITEmisor
	sobre.Body.Solicitar.Req = sf.Solicitud

	body, err := xml.Marshal(&sobre)
	if err != nil {
		return nil, fmt.Errorf("wsfe: serializando sobre SOAP: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("wsfe: creando request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://ar.gov.afip.dif.FEV1/FECAESolicitar")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsfe: endpoint inalcanzable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wsfe: el servicio devolvio %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wsfe: leyendo respuesta: %w", err)
	}

	var parsed sobreRespuesta
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("wsfe: respuesta malformada: %w", err)
	}

	result := parsed.Body.Response.Result

	// Service-level errors: the request was understood and rejected.
	if len(result.Errores) > 0 {
		observaciones := make([]Observacion, 0, len(result.Errores))
		for _, e := range result.Errores {
			observaciones = append(observaciones, Observacion{Codigo: e.Codigo, Mensaje: e.Mensaje})
		}
		return &RespuestaCAE{Resultado: "R", Observaciones: observaciones}, nil
	}

	if len(result.Detalle.Comprobantes) == 0 {
		return nil, fmt.Errorf("wsfe: la respuesta no contiene comprobantes")
	}
	det := result.Detalle.Comprobantes[0]

	out := &RespuestaCAE{
		Resultado:     det.Resultado,
		CAE:           det.CAE,
		Observaciones: det.Observaciones,
	}
	if det.CAEVencimiento != "" {
		venc, err := time.Parse(FormatoFecha, det.CAEVencimiento)
		if err != nil {
			return nil, fmt.Errorf("wsfe: vencimiento de CAE malformado %q: %w", det.CAEVencimiento, err)
		}
		out.CAEVencimiento = venc
	}
	return out, nil
}
