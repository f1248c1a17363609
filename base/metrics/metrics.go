package metrics

const (
	IPServerPktsReceivedH = "The total number of packets received via IP"
	IPServerPktsReceivedN = "timetrap_ip_server_pkts_received"
	IPServerPktsDroppedH  = "The total number of packets dropped without a response via IP"
	IPServerPktsDroppedN  = "timetrap_ip_server_pkts_dropped"
	IPServerReqsAcceptedH = "The total number of requests accepted via IP"
	IPServerReqsAcceptedN = "timetrap_ip_server_reqs_accepted"
	IPServerReqsServedH   = "The total number of requests served via IP"
	IPServerReqsServedN   = "timetrap_ip_server_reqs_served"
)
